// Package smbios 提供SMBIOS Type 17(内存设备)记录的目录
package smbios

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// Type17 是一条内存设备记录中与内存侧缓存相关的字段
type Type17 struct {
	Handle uint16 `yaml:"handle" json:"handle"`
	// CacheDram 表示此DIMM在2LM模式下作为DDR缓存
	CacheDram bool `yaml:"cacheDram" json:"cacheDram"`
	// DeviceSet 是记录上的NUMA节点标签
	DeviceSet uint8 `yaml:"deviceSet" json:"deviceSet"`
}

// Directory 按枚举顺序返回全部Type 17记录
type Directory interface {
	MemoryDevices() ([]Type17, error)
}

// List 是内存中的记录列表，nil表示平台没有提供SMBIOS
type List []Type17

// MemoryDevices 实现Directory
func (l List) MemoryDevices() ([]Type17, error) {
	if l == nil {
		return nil, errors.Wrap(acpi.ErrUnavailable, "没有SMBIOS Type 17记录")
	}
	return l, nil
}

// Layout 描述记录在目录中的排列：按插槽、再按IMC，每个IMC固定数量的DIMM槽
type Layout struct {
	MaxImc          int
	ChannelsPerImc  int
	DimmsPerChannel int
	HalfWidth       bool
}

// DimmsPerImc 返回每个IMC占用的记录数，半宽配置时少一个
func (l Layout) DimmsPerImc() int {
	n := l.ChannelsPerImc * l.DimmsPerChannel
	if l.HalfWidth {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// MaxHandles 返回单个内存域最多引用的句柄数
func (l Layout) MaxHandles() int {
	return l.MaxImc * l.ChannelsPerImc
}

// SelectByImc 选出属于socket上imcBitmap中IMC的缓存DRAM句柄
func SelectByImc(devs []Type17, l Layout, socket int, imcBitmap uint8) []uint16 {
	per := l.DimmsPerImc()
	picked := lo.Filter(devs, func(d Type17, pos int) bool {
		if !d.CacheDram {
			return false
		}
		imc := pos / per
		if imc/l.MaxImc != socket {
			return false
		}
		return imcBitmap&(1<<uint(imc%l.MaxImc)) != 0
	})
	return capHandles(picked, l.MaxHandles())
}

// SelectByDeviceSet 按NUMA节点标签选出缓存DRAM句柄
func SelectByDeviceSet(devs []Type17, l Layout, node int) []uint16 {
	picked := lo.Filter(devs, func(d Type17, _ int) bool {
		return d.CacheDram && int(d.DeviceSet) == node
	})
	return capHandles(picked, l.MaxHandles())
}

func capHandles(devs []Type17, max int) []uint16 {
	if len(devs) > max {
		devs = devs[:max]
	}
	return lo.Map(devs, func(d Type17, _ int) uint16 { return d.Handle })
}
