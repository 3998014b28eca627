// Package msct 构建最大系统特性表(MSCT)
package msct

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Revision 是生成的MSCT版本
const Revision = 1

// ProxDomInfoOffset 是第一个邻近域信息结构相对表头的偏移
const ProxDomInfoOffset = acpi.HeaderSize + 20

// 邻近域信息结构
const (
	ProxDomInfoRevision = 1
	ProxDomInfoLength   = 22
)

// Header 紧跟在系统描述表头之后
type Header struct {
	OffsetProxDomInfo  uint32
	MaxNumProxDom      uint32
	MaxNumClockDom     uint32
	MaxPhysicalAddress uint64
}

// ProxDomInfo 描述一段邻近域的最大容量
type ProxDomInfo struct {
	Revision             uint8
	Length               uint8
	ProxDomRangeLow      uint32
	ProxDomRangeHigh     uint32
	MaxProcessorCapacity uint32
	MaxMemoryCapacity    uint64
}

// Table 是一张已序列化的MSCT
type Table struct {
	Header     acpi.Header
	MsctHeader Header
	ProxDom    []ProxDomInfo

	buf []byte

	ExtractPath string `json:",omitempty"`
}

// Build 填写最大邻近域数和最大物理地址，
// 所有邻近域特性相同，所以只用一个结构覆盖全部域
func Build(d *topology.Descriptor) (*Table, error) {
	bits := uint(d.PhysicalAddressBits)
	maxAddr := ^uint64(0)
	if bits < 64 {
		maxAddr = uint64(1)<<bits - 1
	}
	t := &Table{
		MsctHeader: Header{
			OffsetProxDomInfo:  ProxDomInfoOffset,
			MaxNumProxDom:      uint32(d.Limits.MaxSockets*d.NumClusters() - 1),
			MaxPhysicalAddress: maxAddr,
		},
	}
	t.ProxDom = []ProxDomInfo{{
		Revision:             ProxDomInfoRevision,
		Length:               ProxDomInfoLength,
		ProxDomRangeHigh:     t.MsctHeader.MaxNumProxDom,
		MaxProcessorCapacity: uint32(d.Limits.MaxThreads / d.Limits.MaxSockets),
		MaxMemoryCapacity:    maxAddr,
	}}
	log.Debugf("MSCT: MaxNumProxDom %d MaxPhysicalAddress %#x", t.MsctHeader.MaxNumProxDom, maxAddr)

	buf, err := Encode(d.OEM, t)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Encode 写出表头和邻近域信息结构
func Encode(oem acpi.OEM, t *Table) ([]byte, error) {
	w := acpi.NewWriter(acpi.NewHeader(acpi.SigMSCT, Revision, oem))
	w.Append(&t.MsctHeader)
	for i := range t.ProxDom {
		w.Append(&t.ProxDom[i])
	}
	return w.FinalizeExpect(ProxDomInfoOffset + ProxDomInfoLength*len(t.ProxDom))
}

// Parse 解析一张完整的MSCT
func Parse(buf []byte) (*Table, error) {
	h, err := acpi.ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.SignatureString() != acpi.SigMSCT {
		return nil, fmt.Errorf("签名 %q 不是MSCT", h.SignatureString())
	}
	buf = buf[:h.Length]
	if len(buf) < ProxDomInfoOffset {
		return nil, errors.Wrap(acpi.ErrTruncated, "MSCT表头不完整")
	}
	t := &Table{Header: *h, buf: buf}
	r := bytes.NewReader(buf[acpi.HeaderSize:])
	if err := binary.Read(r, binary.LittleEndian, &t.MsctHeader); err != nil {
		return nil, err
	}
	off := int(t.MsctHeader.OffsetProxDomInfo)
	if off < ProxDomInfoOffset || off > len(buf) || (len(buf)-off)%ProxDomInfoLength != 0 {
		return nil, errors.Wrapf(acpi.ErrTruncated, "邻近域信息偏移 %#x 与表长 %#x 不符", off, len(buf))
	}
	r = bytes.NewReader(buf[off:])
	for r.Len() > 0 {
		var p ProxDomInfo
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return nil, err
		}
		t.ProxDom = append(t.ProxDom, p)
	}
	return t, nil
}

// Signature 返回表签名
func (t *Table) Signature() string {
	return acpi.SigMSCT
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

// ApplyChildren MSCT没有子节点
func (t *Table) ApplyChildren(v acpi.Visitor) error {
	return nil
}

func (t *Table) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%v\n", t.Header)
	fmt.Fprintf(&b, "MaxNumProxDom %d MaxNumClockDom %d MaxPhysicalAddress %#x\n",
		t.MsctHeader.MaxNumProxDom, t.MsctHeader.MaxNumClockDom, t.MsctHeader.MaxPhysicalAddress)
	for _, p := range t.ProxDom {
		fmt.Fprintf(&b, "  ProxDom %d..%d MaxProcessorCapacity %d MaxMemoryCapacity %#x\n",
			p.ProxDomRangeLow, p.ProxDomRangeHigh, p.MaxProcessorCapacity, p.MaxMemoryCapacity)
	}
	return b.String()
}

func init() {
	acpi.RegisterParser(acpi.SigMSCT, func(buf []byte) (acpi.Table, error) {
		t, err := Parse(buf)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}
