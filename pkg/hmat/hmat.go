// Package hmat 构建异构内存属性表(HMAT)
package hmat

import (
	"fmt"

	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Revision 是生成的HMAT版本
const Revision = 1

// 子结构类型
const (
	TypeMSARS = 0
	TypeLBIS  = 1
	TypeMSCIS = 2
)

// MSARS的标志
const (
	ProcessorDomainValid = 1 << 0
	MemoryDomainValid    = 1 << 1
	ReservationHint      = 1 << 2
)

// LBIS的数据类型
const (
	AccessLatency   = 0
	ReadLatency     = 1
	WriteLatency    = 2
	AccessBandwidth = 3
	ReadBandwidth   = 4
	WriteBandwidth  = 5
)

// LBIS的内存层级
const (
	HierarchyMemory          = 0
	HierarchyLastLevelMemory = 1
)

// 各子结构的定长部分
const (
	headerSize = 4
	msarsSize  = 40
	lbisSize   = 32
	mscisSize  = 32
)

// LbisSlots 是模板中LBIS的槽位数：每层4种数据类型，最多3层
const LbisSlots = 4 * 3

// 条目基本单位
const (
	MemoryLatencyBaseUnit        = 100
	MemoryBandwidthBaseUnit      = 1
	CacheLatencyBaseUnit         = 100
	CacheBandwidthBaseUnit       = 1
	CrossSocketLatencyBaseUnit   = 100
	CrossSocketBandwidthBaseUnit = 1
)

// InvalidEntry 是数据类型不匹配时的取值
const InvalidEntry = 0xFF

// 内存侧缓存属性
const (
	OneLevelCache            = 1
	CacheDirectMapped        = 1
	CacheWriteBack           = 1
	CacheLineSize            = 64
	cacheLevelsShift         = 0
	cacheLevelShift          = 4
	cacheAssociativityShift  = 8
	cacheWritePolicyShift    = 12
	cacheLineSizeShift       = 16
	cacheAttributeNibbleMask = 0xF
)

// MemoryType 是LBIS单元对应的内存种类
type MemoryType int

// 内存种类
const (
	DDR MemoryType = iota
	DDRT
	DDR2LMCache
)

func (t MemoryType) String() string {
	switch t {
	case DDR:
		return "DDR"
	case DDRT:
		return "DDRT"
	case DDR2LMCache:
		return "DDR2LMCACHE"
	}
	return fmt.Sprintf("MemoryType(%d)", int(t))
}

// attrs 是某种内存在一个方向上的读写延迟和带宽
type attrs struct {
	readLat, writeLat, readBw, writeBw uint16
}

var (
	ddr       = attrs{760, 760, 17900, 19100}
	xsocketDr = attrs{1356, 1356, 17900, 19100}
	ddrCache  = attrs{760, 760, 17900, 12691}
	ddrt1LM   = attrs{2535, 2535, 4625, 1375}
	ddrt2LM   = attrs{3285, 3285, 4625, 1375}
	xDdrt1LM  = attrs{3160, 3160, 4625, 1375}
	xDdrt2LM  = attrs{3885, 3885, 4625, 1375}
)

func lookup(t MemoryType, mode topology.VolMemMode, crossSocket bool) attrs {
	switch t {
	case DDRT:
		switch {
		case mode == topology.VolMemMode1LM && crossSocket:
			return xDdrt1LM
		case mode == topology.VolMemMode1LM:
			return ddrt1LM
		case crossSocket:
			return xDdrt2LM
		}
		return ddrt2LM
	case DDR2LMCache:
		return ddrCache
	}
	if crossSocket {
		return xsocketDr
	}
	return ddr
}

// Value 返回一种内存某个数据类型的取值，单位由LBIS的EntryBaseUnit决定
// crossSocket为true时使用跨插槽的常量；访问延迟和访问带宽恒为0
func Value(dataType uint8, t MemoryType, mode topology.VolMemMode, crossSocket bool) uint16 {
	a := lookup(t, mode, crossSocket)
	switch dataType {
	case AccessLatency, AccessBandwidth:
		return 0
	case ReadLatency:
		return a.readLat
	case WriteLatency:
		return a.writeLat
	case ReadBandwidth:
		return a.readBw
	case WriteBandwidth:
		return a.writeBw
	}
	return InvalidEntry
}

// IsLatency 判断数据类型是否为延迟
func IsLatency(dataType uint8) bool {
	return dataType <= WriteLatency
}

// DataTypeName 返回数据类型的名字
func DataTypeName(dataType uint8) string {
	switch dataType {
	case AccessLatency:
		return "AccessLatency"
	case ReadLatency:
		return "ReadLatency"
	case WriteLatency:
		return "WriteLatency"
	case AccessBandwidth:
		return "AccessBandwidth"
	case ReadBandwidth:
		return "ReadBandwidth"
	case WriteBandwidth:
		return "WriteBandwidth"
	}
	return fmt.Sprintf("DataType(%d)", dataType)
}

// Header 紧跟在系统描述表头之后
type Header struct {
	Reserved uint32
}

// MSARS 是内存子系统地址范围结构
type MSARS struct {
	Type                     uint16
	Reserved1                uint16
	Length                   uint32
	Flags                    uint16
	Reserved2                uint16
	ProcessorProximityDomain uint32
	MemoryProximityDomain    uint32
	Reserved3                uint32
	AddrBase                 uint64
	AddrLength               uint64
}

// ProcessorValid 判断处理器邻近域字段是否有效
func (m MSARS) ProcessorValid() bool {
	return m.Flags&ProcessorDomainValid != 0
}

// MemoryValid 判断内存邻近域字段是否有效
func (m MSARS) MemoryValid() bool {
	return m.Flags&MemoryDomainValid != 0
}

// LBISHeader 是延迟带宽信息结构的定长部分
type LBISHeader struct {
	Type           uint16
	Reserved1      uint16
	Length         uint32
	Flags          uint8
	DataType       uint8
	Reserved2      uint16
	InitiatorCount uint32
	TargetCount    uint32
	Reserved3      uint32
	EntryBaseUnit  uint64
}

// LBIS 是一张延迟或带宽矩阵，行是发起者，列是目标
type LBIS struct {
	LBISHeader
	Initiators []uint32
	Targets    []uint32
	Entries    []uint16
}

// LbisLength 返回i个发起者和t个目标的LBIS字节数
func LbisLength(i, t int) int {
	return lbisSize + 4*i + 4*t + 2*i*t
}

// At 返回第row个发起者到第col个目标的取值
func (l *LBIS) At(row, col int) uint16 {
	return l.Entries[row*len(l.Targets)+col]
}

// MSCISHeader 是内存侧缓存信息结构的定长部分
type MSCISHeader struct {
	Type                  uint16
	Reserved1             uint16
	Length                uint32
	MemoryProximityDomain uint32
	Reserved2             uint32
	MemorySideCacheSize   uint64
	CacheAttributes       uint32
	Reserved3             uint16
	NumSmbiosHandles      uint16
}

// MSCIS 是内存侧缓存信息结构
type MSCIS struct {
	MSCISHeader
	SmbiosHandles []uint16
}

// MscisLength 返回带n个SMBIOS句柄的MSCIS字节数
func MscisLength(n int) int {
	return mscisSize + 2*n
}

// CacheAttributes 打包一级直接映射写回缓存的属性
func CacheAttributes() uint32 {
	return OneLevelCache<<cacheLevelsShift |
		OneLevelCache<<cacheLevelShift |
		CacheDirectMapped<<cacheAssociativityShift |
		CacheWriteBack<<cacheWritePolicyShift |
		CacheLineSize<<cacheLineSizeShift
}

func (m MSCISHeader) field(shift uint) uint32 {
	return m.CacheAttributes >> shift & cacheAttributeNibbleMask
}

// TotalCacheLevels 返回缓存总层数
func (m MSCISHeader) TotalCacheLevels() uint32 { return m.field(cacheLevelsShift) }

// CacheLevel 返回本结构描述的层级
func (m MSCISHeader) CacheLevel() uint32 { return m.field(cacheLevelShift) }

// Associativity 返回相联方式
func (m MSCISHeader) Associativity() uint32 { return m.field(cacheAssociativityShift) }

// WritePolicy 返回写策略
func (m MSCISHeader) WritePolicy() uint32 { return m.field(cacheWritePolicyShift) }

// LineSize 返回缓存行大小
func (m MSCISHeader) LineSize() uint32 { return m.CacheAttributes >> cacheLineSizeShift }
