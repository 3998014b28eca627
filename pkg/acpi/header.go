package acpi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/unicode"
)

// HeaderSize 是系统描述表头的字节数
const HeaderSize = 36

// 本工具生成的表签名
const (
	SigSLIT = "SLIT"
	SigSRAT = "SRAT"
	SigHMAT = "HMAT"
	SigMSCT = "MSCT"
)

// Header 是每个ACPI系统描述表共有的头部
type Header struct {
	Signature       [4]byte
	Length          uint32
	Revision        uint8
	Checksum        uint8
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// OEM 描述写入表头的厂商信息，来自拓扑描述文件
type OEM struct {
	ID              string `yaml:"id" json:"id"`
	TableID         string `yaml:"tableId" json:"tableId"`
	Revision        uint32 `yaml:"revision" json:"revision"`
	CreatorID       string `yaml:"creatorId" json:"creatorId"`
	CreatorRevision uint32 `yaml:"creatorRevision" json:"creatorRevision"`
}

// NewHeader 根据签名、版本和OEM信息构造表头，Length和Checksum在Finalize时填写
func NewHeader(sig string, revision uint8, oem OEM) Header {
	h := Header{
		Revision:        revision,
		OEMRevision:     oem.Revision,
		CreatorRevision: oem.CreatorRevision,
	}
	copy(h.Signature[:], unicode.ASCIIField(sig, len(h.Signature)))
	copy(h.OEMID[:], unicode.ASCIIField(oem.ID, len(h.OEMID)))
	copy(h.OEMTableID[:], unicode.ASCIIField(oem.TableID, len(h.OEMTableID)))
	copy(h.CreatorID[:], unicode.ASCIIField(oem.CreatorID, len(h.CreatorID)))
	return h
}

// SignatureString 返回四字节签名
func (h *Header) SignatureString() string {
	return string(h.Signature[:])
}

// OEM 把头部中的厂商字段还原为OEM，去掉补齐的空格
func (h *Header) OEM() OEM {
	return OEM{
		ID:              strings.TrimRight(string(h.OEMID[:]), " \x00"),
		TableID:         strings.TrimRight(string(h.OEMTableID[:]), " \x00"),
		Revision:        h.OEMRevision,
		CreatorID:       strings.TrimRight(string(h.CreatorID[:]), " \x00"),
		CreatorRevision: h.CreatorRevision,
	}
}

func (h Header) String() string {
	return fmt.Sprintf("%s rev %d len %#x oem %q/%q csum %#02x",
		h.SignatureString(), h.Revision, h.Length,
		strings.TrimRight(string(h.OEMID[:]), " "), strings.TrimRight(string(h.OEMTableID[:]), " "), h.Checksum)
}

// Checksum8 返回所有字节之和(模256)
func Checksum8(buf []byte) uint8 {
	var sum uint8
	for _, b := range buf {
		sum += b
	}
	return sum
}

// ParseHeader 解析缓冲区开头的表头，并检查长度与校验和
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "头部需要 %d 字节，只有 %d", HeaderSize, len(buf))
	}
	var h Header
	if err := binary.Read(bytes.NewReader(buf[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if int(h.Length) > len(buf) {
		return nil, errors.Wrapf(ErrTruncated, "%s 声明长度 %#x，缓冲区只有 %#x", h.SignatureString(), h.Length, len(buf))
	}
	if h.Length < HeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "%s 声明长度 %#x 小于表头", h.SignatureString(), h.Length)
	}
	if sum := Checksum8(buf[:h.Length]); sum != 0 {
		return nil, errors.Wrapf(ErrBadChecksum, "%s 字节和为 %#02x", h.SignatureString(), sum)
	}
	return &h, nil
}
