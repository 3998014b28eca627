// Package numa 根据内存映射为内存和处理器分配邻近域编号
package numa

import (
	"github.com/samber/lo"
)

// MemoryDomain 是一个内存邻近域
type MemoryDomain struct {
	ID    int  `json:"id"`
	Valid bool `json:"valid"`
	// Socket 是物理插槽号
	Socket int `json:"socket"`
	// Persistent 表示持久内存或FPGA域
	Persistent bool `json:"persistent"`
	// Cacheable 表示由DDR充当内存侧缓存
	Cacheable     bool     `json:"cacheable"`
	SideCacheSize uint64   `json:"sideCacheSize"`
	SmbiosHandles []uint16 `json:"smbiosHandles,omitempty"`
	// MemMapIndexMap 是属于此域的内存映射序号位图
	MemMapIndexMap uint64 `json:"memMapIndexMap"`

	imcBitmap uint8
}

// ProcessorDomain 是一个处理器邻近域
type ProcessorDomain struct {
	ID     int  `json:"id"`
	Valid  bool `json:"valid"`
	Socket int  `json:"socket"`
}

// Domains 是一次分配的结果，构建SRAT和HMAT时共用
type Domains struct {
	Memory    []MemoryDomain    `json:"-"`
	Processor []ProcessorDomain `json:"-"`

	// RegionDomain 是每个内存映射项的内存域，保留或重复的项为-1
	RegionDomain []int `json:"regionDomain"`
	// SkippedEntries 是第一遍跳过的非易失性区域数
	SkippedEntries int `json:"skippedEntries"`
	// NextDomainID 是下一个可用的域编号
	NextDomainID int `json:"nextDomainId"`
}

// LastDomainID 返回已分配的最大域编号
func (ds *Domains) LastDomainID() int {
	return ds.NextDomainID - 1
}

// ValidMemory 按编号升序返回有效的内存域
func (ds *Domains) ValidMemory() []MemoryDomain {
	return lo.Filter(ds.Memory, func(m MemoryDomain, _ int) bool { return m.Valid })
}

// ValidProcessors 按编号升序返回有效的处理器域
func (ds *Domains) ValidProcessors() []ProcessorDomain {
	return lo.Filter(ds.Processor, func(p ProcessorDomain, _ int) bool { return p.Valid })
}

// MemoryDomainOf 返回包含内存映射第index项的内存域
func (ds *Domains) MemoryDomainOf(index int) (int, bool) {
	for _, m := range ds.Memory {
		if m.MemMapIndexMap&(1<<uint(index)) != 0 {
			return m.ID, m.Valid
		}
	}
	return 0, false
}

// Cacheable 返回需要内存侧缓存信息结构的域
func (ds *Domains) Cacheable() []MemoryDomain {
	return lo.Filter(ds.ValidMemory(), func(m MemoryDomain, _ int) bool { return m.Cacheable })
}

// VolatileIDs 返回全部易失性内存域编号
func (ds *Domains) VolatileIDs() []int {
	return lo.FilterMap(ds.Memory, func(m MemoryDomain, _ int) (int, bool) {
		return m.ID, m.Valid && !m.Persistent
	})
}

// PersistentIDs 返回全部持久内存和FPGA域编号
func (ds *Domains) PersistentIDs() []int {
	return lo.FilterMap(ds.Memory, func(m MemoryDomain, _ int) (int, bool) {
		return m.ID, m.Valid && m.Persistent
	})
}
