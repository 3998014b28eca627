package hmat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// Table 是一张已序列化的HMAT
type Table struct {
	Header     acpi.Header
	HmatHeader Header

	MSARS []MSARS `json:",omitempty"`
	LBIS  []LBIS  `json:",omitempty"`
	MSCIS []MSCIS `json:",omitempty"`
	// Unknown 记录不认识的子结构类型
	Unknown []uint16 `json:",omitempty"`

	buf []byte

	ExtractPath string `json:",omitempty"`
}

// Length 返回t中子结构实际占用的总字节数
func (t *Table) Length() int {
	n := acpi.HeaderSize + headerSize + msarsSize*len(t.MSARS)
	for _, l := range t.LBIS {
		n += LbisLength(len(l.Initiators), len(l.Targets))
	}
	for _, m := range t.MSCIS {
		n += MscisLength(len(m.SmbiosHandles))
	}
	return n
}

// Encode 依次写出MSARS、LBIS和MSCIS
func Encode(oem acpi.OEM, t *Table) ([]byte, error) {
	return encode(oem, t, t.Length())
}

func encode(oem acpi.OEM, t *Table, want int) ([]byte, error) {
	w := acpi.NewWriter(acpi.NewHeader(acpi.SigHMAT, Revision, oem))
	w.Append(&Header{})
	for i := range t.MSARS {
		w.Append(&t.MSARS[i])
	}
	for i := range t.LBIS {
		l := &t.LBIS[i]
		w.Append(&l.LBISHeader)
		if len(l.Initiators) > 0 {
			w.Append(l.Initiators)
		}
		if len(l.Targets) > 0 {
			w.Append(l.Targets)
		}
		if len(l.Entries) > 0 {
			w.Append(l.Entries)
		}
	}
	for i := range t.MSCIS {
		m := &t.MSCIS[i]
		w.Append(&m.MSCISHeader)
		if len(m.SmbiosHandles) > 0 {
			w.Append(m.SmbiosHandles)
		}
	}
	return w.FinalizeExpect(want)
}

// Parse 解析一张完整的HMAT
func Parse(buf []byte) (*Table, error) {
	h, err := acpi.ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.SignatureString() != acpi.SigHMAT {
		return nil, fmt.Errorf("签名 %q 不是HMAT", h.SignatureString())
	}
	buf = buf[:h.Length]
	t := &Table{Header: *h, buf: buf}
	body := buf[acpi.HeaderSize:]
	if len(body) < headerSize {
		return nil, errors.Wrap(acpi.ErrTruncated, "HMAT缺少保留字段")
	}
	t.HmatHeader.Reserved = binary.LittleEndian.Uint32(body)

	for off := headerSize; off < len(body); {
		if len(body)-off < 8 {
			return nil, errors.Wrapf(acpi.ErrTruncated, "偏移 %#x 处的子结构不完整", acpi.HeaderSize+off)
		}
		typ := binary.LittleEndian.Uint16(body[off:])
		length := int(binary.LittleEndian.Uint32(body[off+4:]))
		if length < 8 || off+length > len(body) {
			return nil, errors.Wrapf(acpi.ErrTruncated, "偏移 %#x 处的子结构长度 %d 无效", acpi.HeaderSize+off, length)
		}
		sub := body[off : off+length]
		switch typ {
		case TypeMSARS:
			err = t.parseMSARS(sub)
		case TypeLBIS:
			err = t.parseLBIS(sub)
		case TypeMSCIS:
			err = t.parseMSCIS(sub)
		default:
			t.Unknown = append(t.Unknown, typ)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "偏移 %#x", acpi.HeaderSize+off)
		}
		off += length
	}
	return t, nil
}

func (t *Table) parseMSARS(sub []byte) error {
	if len(sub) != msarsSize {
		return errors.Wrapf(acpi.ErrTruncated, "MSARS长度 %d", len(sub))
	}
	var m MSARS
	if err := binary.Read(bytes.NewReader(sub), binary.LittleEndian, &m); err != nil {
		return err
	}
	t.MSARS = append(t.MSARS, m)
	return nil
}

func (t *Table) parseLBIS(sub []byte) error {
	if len(sub) < lbisSize {
		return errors.Wrapf(acpi.ErrTruncated, "LBIS长度 %d", len(sub))
	}
	r := bytes.NewReader(sub)
	var l LBIS
	if err := binary.Read(r, binary.LittleEndian, &l.LBISHeader); err != nil {
		return err
	}
	ni, nt := int(l.InitiatorCount), int(l.TargetCount)
	if want := LbisLength(ni, nt); want != len(sub) {
		return errors.Wrapf(acpi.ErrTruncated, "LBIS %dx%d 应为 %d 字节，实际 %d", ni, nt, want, len(sub))
	}
	l.Initiators = make([]uint32, ni)
	l.Targets = make([]uint32, nt)
	l.Entries = make([]uint16, ni*nt)
	for _, v := range []interface{}{l.Initiators, l.Targets, l.Entries} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	t.LBIS = append(t.LBIS, l)
	return nil
}

func (t *Table) parseMSCIS(sub []byte) error {
	if len(sub) < mscisSize {
		return errors.Wrapf(acpi.ErrTruncated, "MSCIS长度 %d", len(sub))
	}
	r := bytes.NewReader(sub)
	var m MSCIS
	if err := binary.Read(r, binary.LittleEndian, &m.MSCISHeader); err != nil {
		return err
	}
	if want := MscisLength(int(m.NumSmbiosHandles)); want != len(sub) {
		return errors.Wrapf(acpi.ErrTruncated, "MSCIS带 %d 个句柄应为 %d 字节，实际 %d", m.NumSmbiosHandles, want, len(sub))
	}
	m.SmbiosHandles = make([]uint16, m.NumSmbiosHandles)
	if err := binary.Read(r, binary.LittleEndian, m.SmbiosHandles); err != nil {
		return err
	}
	t.MSCIS = append(t.MSCIS, m)
	return nil
}

// Signature 返回表签名
func (t *Table) Signature() string {
	return acpi.SigHMAT
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

// ApplyChildren HMAT的子结构不单独遍历
func (t *Table) ApplyChildren(v acpi.Visitor) error {
	return nil
}

const rule = "=====================================================\n"

func (t *Table) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%v\n", t.Header)
	for _, m := range t.MSARS {
		b.WriteString("=========== MSARS Table =============================\n")
		fmt.Fprintf(&b, " Type:                               %d\n", m.Type)
		fmt.Fprintf(&b, " Length:                             %d\n", m.Length)
		fmt.Fprintf(&b, " Flags:                              %Xh\n", m.Flags)
		fmt.Fprintf(&b, " ProcessorProximityDomain:           %Xh\n", m.ProcessorProximityDomain)
		fmt.Fprintf(&b, " MemoryProximityDomain:              %Xh\n", m.MemoryProximityDomain)
		fmt.Fprintf(&b, " AddrBase:                           %Xh\n", m.AddrBase)
		fmt.Fprintf(&b, " AddrLength:                         %Xh\n", m.AddrLength)
		b.WriteString(rule)
	}
	for i := range t.LBIS {
		l := &t.LBIS[i]
		b.WriteString("=========== MLBIS Table =============================\n")
		fmt.Fprintf(&b, " Type:                               %d\n", l.Type)
		fmt.Fprintf(&b, " Length:                             %d\n", l.Length)
		fmt.Fprintf(&b, " Flags:                              %d\n", l.Flags)
		fmt.Fprintf(&b, " DataType:                           %d (%s)\n", l.DataType, DataTypeName(l.DataType))
		fmt.Fprintf(&b, " InitiatorProximityDomainsNumber:    %d\n", l.InitiatorCount)
		fmt.Fprintf(&b, " TargetProximityDomainsNumber:       %d\n", l.TargetCount)
		fmt.Fprintf(&b, " EntryBaseUnit:                      %Xh\n", l.EntryBaseUnit)
		fmt.Fprintf(&b, " InitiatorProximityDomainList:\n %v\n", l.Initiators)
		fmt.Fprintf(&b, " TargetProximityDomainList:\n %v\n", l.Targets)
		b.WriteString("RelativeDistanceEntry:\n")
		b.WriteString(l.matrix())
		b.WriteString(rule)
	}
	for _, m := range t.MSCIS {
		b.WriteString("=========== MSCIS Table =============================\n")
		fmt.Fprintf(&b, " Type:                               %d\n", m.Type)
		fmt.Fprintf(&b, " Length:                             %d\n", m.Length)
		fmt.Fprintf(&b, " MemoryProximityDomain:              %Xh\n", m.MemoryProximityDomain)
		fmt.Fprintf(&b, " MemorySideCacheSize:                %Xh\n", m.MemorySideCacheSize)
		fmt.Fprintf(&b, " TotalCacheLevels:                   %d\n", m.TotalCacheLevels())
		fmt.Fprintf(&b, " CacheLevel:                         %d\n", m.CacheLevel())
		fmt.Fprintf(&b, " CacheAssociativity:                 %d\n", m.Associativity())
		fmt.Fprintf(&b, " WritePolicy:                        %d\n", m.WritePolicy())
		fmt.Fprintf(&b, " CacheLineSize:                      %d\n", m.LineSize())
		fmt.Fprintf(&b, " NumSmbiosHandles:                   %d\n", m.NumSmbiosHandles)
		for i, h := range m.SmbiosHandles {
			fmt.Fprintf(&b, " SmbiosHandle[%d]:                    %xh\n", i+1, h)
		}
		b.WriteString(rule)
	}
	for _, u := range t.Unknown {
		fmt.Fprintf(&b, "Unknown Type : %d\n", u)
	}
	return b.String()
}

func init() {
	acpi.RegisterParser(acpi.SigHMAT, func(buf []byte) (acpi.Table, error) {
		t, err := Parse(buf)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}
