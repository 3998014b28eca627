package numa

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/smbios"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Assign 为内存映射中的每个区域分配邻近域：
// 第一遍处理易失性区域，第二遍在其后依次编号持久内存和FPGA区域
// dir为nil或不可用时，内存侧缓存不带SMBIOS句柄
func Assign(d *topology.Descriptor, dir smbios.Directory) (*Domains, error) {
	ds := &Domains{
		Memory:       make([]MemoryDomain, d.MaxMemoryDomains()),
		Processor:    make([]ProcessorDomain, d.MaxProcessorDomains()),
		RegionDomain: make([]int, len(d.MemoryMap)),
	}
	for i := range ds.Memory {
		ds.Memory[i].ID = i
	}
	for i := range ds.Processor {
		ds.Processor[i].ID = i
	}
	for i := range ds.RegionDomain {
		ds.RegionDomain[i] = -1
	}

	if err := ds.assignProcessors(d); err != nil {
		return nil, err
	}
	if err := ds.assignMemory(d, loadDevices(dir)); err != nil {
		return nil, err
	}
	return ds, nil
}

func loadDevices(dir smbios.Directory) []smbios.Type17 {
	if dir == nil {
		return nil
	}
	devs, err := dir.MemoryDevices()
	if err != nil {
		log.Warnf("无法读取SMBIOS内存设备，内存侧缓存将不带句柄: %v", err)
		return nil
	}
	return devs
}

func (ds *Domains) assignMemory(d *topology.Descriptor, devs []smbios.Type17) error {
	var (
		stored    []uint64
		pending   []int
		memSocket uint32
		next      int
	)
	layout := d.SmbiosLayout()

	for idx, r := range d.MemoryMap {
		if r.Type.IsReserved() {
			continue
		}
		if !r.Type.IsVolatile() {
			pending = append(pending, idx)
			ds.SkippedEntries++
			continue
		}
		if lo.Contains(stored, r.Base) {
			continue
		}
		stored = append(stored, r.Base)
		memSocket |= 1 << uint(r.Socket)

		id := VirtualDomain(d, ClusterDomain(d, r, true), idx)
		if id >= len(ds.Memory) {
			log.Errorf("内存区域 %d 的邻近域 %#x 超出上限 %d", idx, id, len(ds.Memory))
			return errors.Wrapf(acpi.ErrCapacity, "内存邻近域 %d 超出上限 %d", id, len(ds.Memory))
		}
		if id+1 > next {
			next = id + 1
		}

		m := &ds.Memory[id]
		m.MemMapIndexMap |= 1 << uint(idx)
		ds.RegionDomain[idx] = id
		if !m.Valid {
			m.Valid = true
			m.Socket = r.Socket
			m.imcBitmap = 0
		}
		if r.Type.Is2LM() {
			m.Cacheable = true
			ds.addSideCache(d, m, r, devs, layout)
		}
		m.imcBitmap |= r.ImcBitmap

		log.Debugf("内存映射[%d] 插槽 %d 类型 %v IMC %#x -> 域 %d 缓存 %v 大小 %#x",
			idx, r.Socket, r.Type, r.ImcBitmap, id, m.Cacheable, m.SideCacheSize)
	}

	// 在位但没有内存的插槽也要占用编号
	for _, phys := range d.PresentSockets() {
		if memSocket&(1<<uint(phys)) == 0 {
			next += d.NumClusters()
		}
	}

	for _, idx := range pending {
		r := d.MemoryMap[idx]
		if lo.Contains(stored, r.Base) {
			continue
		}
		stored = append(stored, r.Base)

		id := next
		if id >= len(ds.Memory) {
			log.Errorf("持久内存区域 %d 的邻近域 %#x 超出上限 %d", idx, id, len(ds.Memory))
			return errors.Wrapf(acpi.ErrCapacity, "内存邻近域 %d 超出上限 %d", id, len(ds.Memory))
		}
		next++

		m := &ds.Memory[id]
		m.MemMapIndexMap |= 1 << uint(idx)
		m.Valid = true
		m.Persistent = true
		m.Socket = r.Socket
		ds.RegionDomain[idx] = id
		log.Debugf("内存映射[%d] 插槽 %d 类型 %v -> 持久域 %d", idx, r.Socket, r.Type, id)
	}

	ds.NextDomainID = next
	return nil
}

// addSideCache 累加区域新带来的IMC的缓存容量，并补上对应的SMBIOS句柄
func (ds *Domains) addSideCache(d *topology.Descriptor, m *MemoryDomain, r topology.Region, devs []smbios.Type17, layout smbios.Layout) {
	s := d.SocketByID(r.Socket)
	added := false
	for mc := 0; mc < d.Limits.MaxImc; mc++ {
		bit := uint8(1) << uint(mc)
		if r.ImcBitmap&bit == 0 || m.imcBitmap&bit != 0 {
			continue
		}
		added = true
		if s == nil {
			continue
		}
		sizes := s.DdrCacheSizes
		if d.VolMemMode == topology.VolMemMode2LM {
			sizes = s.ImcSizes
		}
		if mc < len(sizes) {
			m.SideCacheSize += sizes[mc]
		}
	}
	if !added || devs == nil {
		return
	}

	var handles []uint16
	if d.SmbiosByDeviceSet {
		handles = smbios.SelectByDeviceSet(devs, layout, m.ID)
	} else {
		handles = smbios.SelectByImc(devs, layout, r.Socket, r.ImcBitmap)
	}
	m.SmbiosHandles = lo.Uniq(append(m.SmbiosHandles, handles...))
	if limit := layout.MaxHandles(); len(m.SmbiosHandles) > limit {
		m.SmbiosHandles = m.SmbiosHandles[:limit]
	}
}

// assignProcessors 为每个带内存的簇建立处理器域，没有内存的插槽补齐全部簇
func (ds *Domains) assignProcessors(d *topology.Descriptor) error {
	var memSocket uint32
	for idx, r := range d.MemoryMap {
		if r.Type.IsReserved() || r.Type.IsFpga() {
			continue
		}
		id := d.LogicalSocket(r.Socket)
		if d.SNC.Enabled || d.VirtualNuma.Enabled {
			id = VirtualDomain(d, ClusterDomain(d, r, false), idx)
		}
		if id >= len(ds.Processor) {
			log.Errorf("内存映射[%d] 的处理器邻近域 %#x 超出上限 %d", idx, id, len(ds.Processor))
			return errors.Wrapf(acpi.ErrCapacity, "处理器邻近域 %d 超出上限 %d", id, len(ds.Processor))
		}
		p := &ds.Processor[id]
		if !p.Valid {
			p.Valid = true
			p.Socket = r.Socket
		}
		memSocket |= 1 << uint(r.Socket)
	}

	for _, phys := range d.PresentSockets() {
		if memSocket&(1<<uint(phys)) != 0 {
			continue
		}
		n := d.NumClusters()
		for i := 0; i < n; i++ {
			id := d.LogicalSocket(phys)*n + i
			if id >= len(ds.Processor) {
				return errors.Wrapf(acpi.ErrCapacity, "处理器邻近域 %d 超出上限 %d", id, len(ds.Processor))
			}
			ds.Processor[id] = ProcessorDomain{ID: id, Valid: true, Socket: phys}
		}
		log.Debugf("插槽 %d 没有内存，补充 %d 个处理器域", phys, n)
	}
	return nil
}
