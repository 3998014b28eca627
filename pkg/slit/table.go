package slit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// Table 是一张已序列化的SLIT
type Table struct {
	Header     acpi.Header
	Localities uint64
	// Distances 按行给出距离，Distances[i][j]是i到j的距离
	Distances [][]int

	buf []byte

	ExtractPath string `json:",omitempty"`
}

// Encode 序列化矩阵，只写出前N²个单元
func Encode(oem acpi.OEM, m *Matrix) ([]byte, error) {
	w := acpi.NewWriter(acpi.NewHeader(acpi.SigSLIT, Revision, oem))
	w.Append(uint64(m.N), m.Localities())
	return w.FinalizeExpect(acpi.HeaderSize + 8 + m.N*m.N)
}

// New 序列化矩阵并返回对应的表
func New(oem acpi.OEM, m *Matrix) (*Table, error) {
	buf, err := Encode(oem, m)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse 解析一张完整的SLIT
func Parse(buf []byte) (*Table, error) {
	h, err := acpi.ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.SignatureString() != acpi.SigSLIT {
		return nil, fmt.Errorf("签名 %q 不是SLIT", h.SignatureString())
	}
	body := buf[acpi.HeaderSize:h.Length]
	if len(body) < 8 {
		return nil, errors.Wrap(acpi.ErrTruncated, "SLIT缺少节点数")
	}
	t := &Table{Header: *h, buf: buf[:h.Length]}
	t.Localities = binary.LittleEndian.Uint64(body)
	cells := body[8:]
	// 先和单元数比较，避免超大的节点数在相乘时溢出
	if t.Localities > uint64(len(cells)) || int(t.Localities)*int(t.Localities) > len(cells) {
		return nil, errors.Wrapf(acpi.ErrTruncated, "SLIT声明 %d 个节点，只有 %d 个单元", t.Localities, len(cells))
	}
	n := int(t.Localities)
	t.Distances = make([][]int, n)
	for i := range t.Distances {
		t.Distances[i] = make([]int, n)
		for j := range t.Distances[i] {
			t.Distances[i][j] = int(cells[i*n+j])
		}
	}
	return t, nil
}

// At 返回from到to的距离
func (t *Table) At(from, to int) int {
	return t.Distances[from][to]
}

// Signature 返回表签名
func (t *Table) Signature() string {
	return acpi.SigSLIT
}

// Buf 返回缓冲区
func (t *Table) Buf() []byte {
	return t.buf
}

// SetBuf 设置缓冲区
func (t *Table) SetBuf(buf []byte) {
	t.buf = buf
}

// Apply 在Table上调用访问者
func (t *Table) Apply(v acpi.Visitor) error {
	return v.Visit(t)
}

// ApplyChildren SLIT没有子节点
func (t *Table) ApplyChildren(v acpi.Visitor) error {
	return nil
}

func (t *Table) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%v\nNumberOfSystemLocalities %d\n", t.Header, t.Localities)
	for i, row := range t.Distances {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%02X", v)
		}
		fmt.Fprintf(&b, "[%2d] %s\n", i, strings.Join(cells, " "))
	}
	return b.String()
}

func init() {
	acpi.RegisterParser(acpi.SigSLIT, func(buf []byte) (acpi.Table, error) {
		t, err := Parse(buf)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}
