// Package srat 构建系统资源亲和表(SRAT)
package srat

import (
	"fmt"
)

// Revision 是生成的SRAT版本
const Revision = 3

// 子结构类型
const (
	TypeAPIC   = 0
	TypeMemory = 1
	TypeX2APIC = 2
)

// 处理器亲和结构的标志
const APICEnabled = 1

// 内存亲和结构的标志
const (
	MemoryEnabled      = 1 << 0
	MemoryHotPluggable = 1 << 1
	MemoryNonVolatile  = 1 << 2
)

// ReservedBackwardCompat 是表头Reserved1要求的值
const ReservedBackwardCompat = 1

// Header 紧跟在系统描述表头之后
type Header struct {
	Reserved1 uint32
	Reserved2 uint64
}

// APICAffinity 是处理器本地APIC/SAPIC亲和结构
type APICAffinity struct {
	Type                 uint8
	Length               uint8
	ProximityDomain7To0  uint8
	ApicID               uint8
	Flags                uint32
	LocalSapicEid        uint8
	ProximityDomain31To8 [3]uint8
	ClockDomain          uint32
}

// ProximityDomain 拼出完整的32位邻近域
func (a APICAffinity) ProximityDomain() uint32 {
	return uint32(a.ProximityDomain7To0) |
		uint32(a.ProximityDomain31To8[0])<<8 |
		uint32(a.ProximityDomain31To8[1])<<16 |
		uint32(a.ProximityDomain31To8[2])<<24
}

func newAPICAffinity(apicID uint8, domain uint32, enabled bool) APICAffinity {
	a := APICAffinity{
		Type:                TypeAPIC,
		Length:              16,
		ProximityDomain7To0: uint8(domain),
		ApicID:              apicID,
		ProximityDomain31To8: [3]uint8{
			uint8(domain >> 8), uint8(domain >> 16), uint8(domain >> 24),
		},
	}
	if enabled {
		a.Flags = APICEnabled
	}
	return a
}

// MemoryAffinity 是内存亲和结构
type MemoryAffinity struct {
	Type            uint8
	Length          uint8
	ProximityDomain uint32
	Reserved1       uint16
	AddressBaseLow  uint32
	AddressBaseHigh uint32
	LengthLow       uint32
	LengthHigh      uint32
	Reserved2       uint32
	Flags           uint32
	Reserved3       uint64
}

func newMemoryAffinity(domain uint32, base, length uint64, flags uint32) MemoryAffinity {
	return MemoryAffinity{
		Type:            TypeMemory,
		Length:          40,
		ProximityDomain: domain,
		AddressBaseLow:  uint32(base),
		AddressBaseHigh: uint32(base >> 32),
		LengthLow:       uint32(length),
		LengthHigh:      uint32(length >> 32),
		Flags:           flags,
	}
}

// Base 返回区域基址
func (m MemoryAffinity) Base() uint64 {
	return uint64(m.AddressBaseHigh)<<32 | uint64(m.AddressBaseLow)
}

// Size 返回区域长度
func (m MemoryAffinity) Size() uint64 {
	return uint64(m.LengthHigh)<<32 | uint64(m.LengthLow)
}

func (m MemoryAffinity) String() string {
	return fmt.Sprintf("%016x %016x %2x %x", m.Base(), m.Size(), m.ProximityDomain, m.Flags)
}

// X2APICAffinity 是处理器本地x2APIC亲和结构
type X2APICAffinity struct {
	Type            uint8
	Length          uint8
	Reserved1       uint16
	ProximityDomain uint32
	X2ApicID        uint32
	Flags           uint32
	ClockDomain     uint32
	Reserved2       uint32
}

func newX2APICAffinity(apicID, domain uint32) X2APICAffinity {
	return X2APICAffinity{
		Type:            TypeX2APIC,
		Length:          24,
		ProximityDomain: domain,
		X2ApicID:        apicID,
		Flags:           APICEnabled,
	}
}
