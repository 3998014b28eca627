package compression

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tinytoy-sec/NumaTableGen/pkg/guid"
)

var xzPath = pflag.String("xz-path", "xz", "用于lzma编码的系统xz命令的路径。如果找不到，则使用内部lzma实现")

// Compressor 定义单一的压缩方案(例如LZMA)
type Compressor interface {
	// Name 通常是方案名称
	Name() string

	// Decode 和 Encode 满足 "x == Decode(Encode(x))"
	Decode(encodedData []byte) ([]byte, error)
	Encode(decodedData []byte) ([]byte, error)
}

// 表集合文件中用于标记压缩方式的GUID
var (
	LZMAGUID = *guid.MustParse("EE4E5898-3914-4259-9D6E-DC7BD79403CF")
	XZGUID   = *guid.MustParse("6C2F4A8E-1B0D-4E37-9A64-5F0C3D8B7E21")
)

var names = map[string]guid.GUID{
	"none": guid.Zero,
	"lzma": LZMAGUID,
	"xz":   XZGUID,
}

// GUIDFromName 把 --compression 的取值转换为GUID
func GUIDFromName(name string) (guid.GUID, error) {
	g, ok := names[strings.ToLower(name)]
	if !ok {
		return guid.Zero, fmt.Errorf("未知的压缩方式 '%s'，可选 none、lzma、xz", name)
	}
	return g, nil
}

// CompressorFromGUID 返回对应GUID的Compressor，全零GUID或未知GUID返回nil
func CompressorFromGUID(g *guid.GUID) Compressor {
	switch *g {
	case LZMAGUID:
		// 优先使用系统xz命令，找不到时用内部实现
		if _, err := exec.LookPath(*xzPath); err == nil {
			return &SystemLZMA{*xzPath}
		}
		return &LZMA{}
	case XZGUID:
		return &XZ{}
	}
	return nil
}
