package compression

import (
	"bytes"
	"encoding/binary"
	"os/exec"

	"github.com/pkg/errors"
)

// lzmaHeaderSize 是.lzma头：属性1字节，字典大小4字节，解压后长度8字节
const lzmaHeaderSize = 13

// SystemLZMA 用系统的xz命令压缩，解压仍使用内部实现
// xz比内部实现快，压出的表集合也更小
type SystemLZMA struct {
	xzPath string
}

// Name 返回压缩方式
func (c *SystemLZMA) Name() string {
	return "LZMA"
}

// Decode 解压LZMA数据
func (c *SystemLZMA) Decode(encodedData []byte) ([]byte, error) {
	return (&LZMA{}).Decode(encodedData)
}

// Encode 调用 `xz --format=lzma` 压缩
func (c *SystemLZMA) Encode(decodedData []byte) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.Command(c.xzPath, "--format=lzma", "-7", "--stdout")
	cmd.Stdin = bytes.NewReader(decodedData)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", c.xzPath, bytes.TrimSpace(stderr.Bytes()))
	}
	if len(out) < lzmaHeaderSize {
		return nil, errors.Errorf("xz输出过短: %d字节", len(out))
	}

	// xz写入的长度字段是未知(-1)，这里补上实际长度
	binary.LittleEndian.PutUint64(out[5:lzmaHeaderSize], uint64(len(decodedData)))
	return out, nil
}
