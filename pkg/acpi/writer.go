package acpi

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Writer 是按小端顺序追加子结构的可增长缓冲区
// 头部先写入，Finalize时补上Length和Checksum
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter 创建一个以h开头的Writer
func NewWriter(h Header) *Writer {
	w := &Writer{}
	w.Append(&h)
	return w
}

// Append 以打包的小端格式追加v，v必须是定长类型
// 第一个错误会被记住，之后的Append不再生效
func (w *Writer) Append(v ...interface{}) {
	for _, x := range v {
		if w.err != nil {
			return
		}
		w.err = binary.Write(&w.buf, binary.LittleEndian, x)
	}
}

// Len 返回目前写入的字节数
func (w *Writer) Len() int {
	return w.buf.Len()
}

// PutUint32At 在已写入的偏移处回填一个uint32
func (w *Writer) PutUint32At(off int, v uint32) {
	if w.err != nil {
		return
	}
	if off+4 > w.buf.Len() {
		w.err = errors.Wrapf(ErrTruncated, "回填偏移 %#x 超出已写长度 %#x", off, w.buf.Len())
		return
	}
	binary.LittleEndian.PutUint32(w.buf.Bytes()[off:], v)
}

// Finalize 写入总长度和校验和，返回完整的表
func (w *Writer) Finalize() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := append([]byte(nil), w.buf.Bytes()...)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(out)))
	out[9] = 0
	out[9] = -Checksum8(out)
	return out, nil
}

// FinalizeExpect 与Finalize相同，但要求写出的长度等于预先计算的want
func (w *Writer) FinalizeExpect(want int) ([]byte, error) {
	out, err := w.Finalize()
	if err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, errors.Wrapf(ErrLengthDrift, "计算长度 %#x，实际写出 %#x", want, len(out))
	}
	return out, nil
}
