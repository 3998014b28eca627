package srat

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/numa"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Build 根据拓扑和已分配的邻近域生成SRAT
func Build(d *topology.Descriptor, ds *numa.Domains) (*Table, error) {
	t := &Table{}
	var err error
	if d.CPUHotPlug {
		t.APIC, err = hotPlugAPIC(d)
	} else {
		t.APIC, t.X2APIC, err = threadAffinity(d)
	}
	if err != nil {
		return nil, err
	}
	if t.Memory, err = memoryAffinity(d, ds); err != nil {
		return nil, err
	}

	buf, err := Encode(d.OEM, t)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// hotPlugAPIC 列出每个插槽全部可能的APIC id，所有偶数序号在前，奇数序号在后
func hotPlugAPIC(d *topology.Descriptor) ([]APICAffinity, error) {
	var out []APICAffinity
	for parity := 0; parity < 2; parity++ {
		for _, phys := range d.PresentSockets() {
			s := d.SocketByID(phys)
			if s == nil {
				continue
			}
			for i := parity; i < len(s.ApicIDs); i += 2 {
				id := s.ApicIDs[i]
				if id > 0xFF {
					return nil, fmt.Errorf("插槽 %d 的APIC id %#x 超出xAPIC范围", phys, id)
				}
				out = append(out, newAPICAffinity(uint8(id), uint32(d.LogicalSocket(phys)), id != topology.AbsentApicID))
			}
		}
	}
	log.Debugf("SRAT: CPU热插拔模式，%d 个APIC项", len(out))
	return out, nil
}

func threadAffinity(d *topology.Descriptor) ([]APICAffinity, []X2APICAffinity, error) {
	collocated := false
	if d.SNC.Enabled || d.VirtualNuma.Enabled {
		collocated = numa.CollocatedChaPresent(d.Threads)
		if d.SNC.Enabled && !collocated {
			log.Warnf("没有找到同位CHA编号，SNC邻近域按线程号划分")
		}
	}

	var (
		apic []APICAffinity
		x2   []X2APICAffinity
	)
	for i, th := range d.Threads {
		pd := uint32(numa.ThreadDomain(d, th, collocated))
		if d.X2APIC {
			x2 = append(x2, newX2APICAffinity(th.ApicID, pd))
		} else {
			if th.ApicID > 0xFF {
				return nil, nil, fmt.Errorf("线程 %d 的APIC id %#x 需要x2APIC模式", i, th.ApicID)
			}
			apic = append(apic, newAPICAffinity(uint8(th.ApicID), pd, true))
		}
		log.Debugf("SRAT: CpuThreadIndex %x, ApicId %x, ProximityDomain %x", i, th.ApicID, pd)
	}
	return apic, x2, nil
}

// HotPlugRange 返回内存热插拔范围的起点和每个节点的长度，单位为4GB
func HotPlugRange(hp topology.MemHotPlug) (base, length uint64) {
	if hp.Base == 0 {
		base = hp.Tohm >> 32
		if uint32(hp.Tohm) != 0 {
			base++
		}
	} else {
		base = uint64(hp.Base) * 0x80
	}
	length = (uint64(hp.Length) + 1) * 0x10
	return base, length
}

func memoryAffinity(d *topology.Descriptor, ds *numa.Domains) ([]MemoryAffinity, error) {
	legacy := -1
	for _, r := range d.MemoryMap {
		if !r.Type.IsReserved() && r.Base == 0 && r.Size > 0 {
			legacy = r.Node
			break
		}
	}

	var (
		out   []MemoryAffinity
		bases []uint64
	)
	log.Debugf("SRAT: Idx  Base              Length           Proximity Flags")
	for idx, r := range d.MemoryMap {
		if r.Type.IsReserved() || lo.Contains(bases, r.Base) {
			continue
		}
		bases = append(bases, r.Base)

		pd := ds.RegionDomain[idx]
		if pd < 0 {
			log.Warnf("SRAT: 内存映射[%d] 基址 %#x 没有邻近域，跳过", idx, r.Base)
			continue
		}
		var flags uint32 = MemoryEnabled
		if d.MemHotPlug.Enabled && r.Node != legacy {
			flags |= MemoryHotPluggable
		}
		if !r.Type.IsVolatile() && !r.Type.IsFpga() {
			flags |= MemoryNonVolatile
		}
		m := newMemoryAffinity(uint32(pd), r.Base, r.Size, flags)
		log.Debugf("SRAT: %3d  %v", len(out), m)
		out = append(out, m)
	}

	if d.MemHotPlug.Enabled {
		base, length := HotPlugRange(d.MemHotPlug)
		for node := 0; node < d.McMaxNode(); node++ {
			m := newMemoryAffinity(uint32(node>>1), (base+uint64(node)*length)<<32, length<<32,
				MemoryEnabled|MemoryHotPluggable)
			log.Debugf("SRAT: %3d  %v", len(out), m)
			out = append(out, m)
		}
	}

	if limit := d.MaxMemoryRegions(); len(out) > limit {
		log.Errorf("SRAT: %d 个内存亲和结构超出上限 %d", len(out), limit)
		return nil, errors.Wrapf(acpi.ErrCapacity, "SRAT内存亲和结构 %d 个，上限 %d", len(out), limit)
	}
	return out, nil
}
