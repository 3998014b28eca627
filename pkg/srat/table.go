package srat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// Table 是一张已序列化的SRAT
type Table struct {
	Header     acpi.Header
	SratHeader Header

	APIC   []APICAffinity   `json:",omitempty"`
	Memory []MemoryAffinity `json:",omitempty"`
	X2APIC []X2APICAffinity `json:",omitempty"`
	// Unknown 记录不认识的子结构类型
	Unknown []uint8 `json:",omitempty"`

	buf []byte

	ExtractPath string `json:",omitempty"`
}

// Encode 依次写出APIC、内存和x2APIC亲和结构
func Encode(oem acpi.OEM, t *Table) ([]byte, error) {
	w := acpi.NewWriter(acpi.NewHeader(acpi.SigSRAT, Revision, oem))
	w.Append(Header{Reserved1: ReservedBackwardCompat})
	for i := range t.APIC {
		w.Append(&t.APIC[i])
	}
	for i := range t.Memory {
		w.Append(&t.Memory[i])
	}
	for i := range t.X2APIC {
		w.Append(&t.X2APIC[i])
	}
	return w.FinalizeExpect(acpi.HeaderSize + 12 + 16*len(t.APIC) + 40*len(t.Memory) + 24*len(t.X2APIC))
}

// Parse 解析一张完整的SRAT
func Parse(buf []byte) (*Table, error) {
	h, err := acpi.ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.SignatureString() != acpi.SigSRAT {
		return nil, fmt.Errorf("签名 %q 不是SRAT", h.SignatureString())
	}
	buf = buf[:h.Length]
	t := &Table{Header: *h, buf: buf}
	body := buf[acpi.HeaderSize:]
	if len(body) < 12 {
		return nil, errors.Wrap(acpi.ErrTruncated, "SRAT缺少保留字段")
	}
	if err := binary.Read(bytes.NewReader(body[:12]), binary.LittleEndian, &t.SratHeader); err != nil {
		return nil, err
	}

	for off := 12; off < len(body); {
		if len(body)-off < 2 {
			return nil, errors.Wrapf(acpi.ErrTruncated, "偏移 %#x 处的子结构不完整", acpi.HeaderSize+off)
		}
		typ, length := body[off], int(body[off+1])
		if length < 2 || off+length > len(body) {
			return nil, errors.Wrapf(acpi.ErrTruncated, "偏移 %#x 处的子结构长度 %d 无效", acpi.HeaderSize+off, length)
		}
		r := bytes.NewReader(body[off : off+length])
		switch {
		case typ == TypeAPIC && length == 16:
			var a APICAffinity
			err = binary.Read(r, binary.LittleEndian, &a)
			t.APIC = append(t.APIC, a)
		case typ == TypeMemory && length == 40:
			var m MemoryAffinity
			err = binary.Read(r, binary.LittleEndian, &m)
			t.Memory = append(t.Memory, m)
		case typ == TypeX2APIC && length == 24:
			var x X2APICAffinity
			err = binary.Read(r, binary.LittleEndian, &x)
			t.X2APIC = append(t.X2APIC, x)
		default:
			t.Unknown = append(t.Unknown, typ)
		}
		if err != nil {
			return nil, err
		}
		off += length
	}
	return t, nil
}

// Signature 返回表签名
func (t *Table) Signature() string {
	return acpi.SigSRAT
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

// ApplyChildren SRAT的子结构不单独遍历
func (t *Table) ApplyChildren(v acpi.Visitor) error {
	return nil
}

func (t *Table) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%v\n", t.Header)
	for i, a := range t.APIC {
		fmt.Fprintf(&b, "APIC   %3d ApicId %02x ProximityDomain %x Flags %x\n", i, a.ApicID, a.ProximityDomain(), a.Flags)
	}
	for i, x := range t.X2APIC {
		fmt.Fprintf(&b, "x2APIC %3d X2ApicId %x ProximityDomain %x Flags %x\n", i, x.X2ApicID, x.ProximityDomain, x.Flags)
	}
	b.WriteString("Idx  Base             Length           Proximity Flags\n")
	for i, m := range t.Memory {
		fmt.Fprintf(&b, "%3d  %v\n", i, m)
	}
	for _, u := range t.Unknown {
		fmt.Fprintf(&b, "Unknown Type : %d\n", u)
	}
	return b.String()
}

func init() {
	acpi.RegisterParser(acpi.SigSRAT, func(buf []byte) (acpi.Table, error) {
		t, err := Parse(buf)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}
