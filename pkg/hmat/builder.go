package hmat

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/numa"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Layout 是按平台上限预留的HMAT模板，每类子结构都有固定数量的最大槽位
// 实际写出的长度等于模板长度减去未用槽位的松弛量
type Layout struct {
	MsarsCap    int
	LbisMaxLen  int
	MscisCap    int
	MscisMaxLen int
}

// LayoutOf 根据拓扑上限计算模板
func LayoutOf(d *topology.Descriptor) Layout {
	return Layout{
		MsarsCap:    d.MaxMemoryRegions(),
		LbisMaxLen:  LbisLength(d.MaxProcessorDomains(), d.MaxMemoryDomains()),
		MscisCap:    d.MaxMemoryDomains(),
		MscisMaxLen: MscisLength(d.SmbiosLayout().MaxHandles()),
	}
}

// TemplateLength 返回全部槽位都占满时的表长
func (l Layout) TemplateLength() int {
	return acpi.HeaderSize + headerSize +
		l.MsarsCap*msarsSize +
		LbisSlots*l.LbisMaxLen +
		l.MscisCap*l.MscisMaxLen
}

// Slack 按各子结构Length字段统计t中没有用到的模板字节数
func (l Layout) Slack(t *Table) int {
	slack := (l.MsarsCap - len(t.MSARS)) * msarsSize

	used := 0
	for _, s := range t.LBIS {
		used += int(s.Length)
	}
	slack += LbisSlots*l.LbisMaxLen - used

	used = 0
	for _, s := range t.MSCIS {
		used += int(s.Length)
	}
	slack += l.MscisCap*l.MscisMaxLen - used
	return slack
}

// Build 根据拓扑和已分配的邻近域生成HMAT：
// 先是每个内存区域的MSARS，然后是DDR的读写延迟和带宽矩阵，
// 非1LM模式再加上DDR作缓存的四张矩阵，最后是每个可缓存域的MSCIS
func Build(d *topology.Descriptor, ds *numa.Domains) (*Table, error) {
	l := LayoutOf(d)
	t := &Table{}
	var err error
	if t.MSARS, err = msars(d, ds, l); err != nil {
		return nil, err
	}
	if t.LBIS, err = lbis(d, ds); err != nil {
		return nil, err
	}
	if t.MSCIS, err = mscis(ds, l); err != nil {
		return nil, err
	}

	slack := l.Slack(t)
	log.Debugf("HMAT: 模板长度 %#x，松弛 %#x", l.TemplateLength(), slack)
	buf, err := encode(d.OEM, t, l.TemplateLength()-slack)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

func msars(d *topology.Descriptor, ds *numa.Domains, l Layout) ([]MSARS, error) {
	var (
		out   []MSARS
		bases []uint64
	)
	for idx, r := range d.MemoryMap {
		if r.Type.IsReserved() || lo.Contains(bases, r.Base) {
			continue
		}
		if len(out) >= l.MsarsCap {
			log.Errorf("HMAT: MSARS超出上限 %d", l.MsarsCap)
			return nil, errors.Wrapf(acpi.ErrCapacity, "MSARS上限 %d", l.MsarsCap)
		}
		bases = append(bases, r.Base)

		m := MSARS{
			Type:       TypeMSARS,
			Length:     msarsSize,
			AddrBase:   r.Base,
			AddrLength: r.Size,
		}
		if id, valid := ds.MemoryDomainOf(idx); valid {
			m.MemoryProximityDomain = uint32(id)
			m.Flags |= MemoryDomainValid
		}
		// FPGA没有处理器，处理器域字段为0且无效
		if !r.Type.IsFpga() {
			id := d.LogicalSocket(r.Socket)
			if d.SNC.Enabled || d.VirtualNuma.Enabled {
				id = numa.VirtualDomain(d, numa.ClusterDomain(d, r, false), idx)
			}
			m.ProcessorProximityDomain = uint32(id)
			if id >= 0 && id < len(ds.Processor) && ds.Processor[id].Valid {
				m.Flags |= ProcessorDomainValid
			}
		}
		log.Debugf("HMAT: MSARS[%d] 基址 %#x 长度 %#x 内存域 %d 处理器域 %d 标志 %#x",
			len(out), m.AddrBase, m.AddrLength, m.MemoryProximityDomain, m.ProcessorProximityDomain, m.Flags)
		out = append(out, m)
	}
	return out, nil
}

// CellType 返回LBIS中第col个目标的内存种类
// 混合或1LM模式下，前 targets-skipped 列是DDR，其余是DDRT
func CellType(mode topology.VolMemMode, cache bool, col, targets, skipped int) MemoryType {
	switch {
	case cache:
		return DDR2LMCache
	case mode == topology.VolMemMode2LM:
		return DDRT
	}
	if denom := targets - skipped; denom > 0 && col/denom == 0 {
		return DDR
	}
	return DDRT
}

var lbisDataTypes = []uint8{ReadLatency, WriteLatency, ReadBandwidth, WriteBandwidth}

func lbis(d *topology.Descriptor, ds *numa.Domains) ([]LBIS, error) {
	procs := ds.ValidProcessors()
	mems := ds.ValidMemory()

	var out []LBIS
	for _, dt := range lbisDataTypes {
		out = append(out, newLBIS(d, ds, procs, mems, dt, false))
	}
	if d.VolMemMode != topology.VolMemMode1LM {
		for _, dt := range lbisDataTypes {
			out = append(out, newLBIS(d, ds, procs, mems, dt, true))
		}
	}
	if len(out) > LbisSlots {
		return nil, errors.Wrapf(acpi.ErrCapacity, "LBIS %d 个，上限 %d", len(out), LbisSlots)
	}
	return out, nil
}

func newLBIS(d *topology.Descriptor, ds *numa.Domains, procs []numa.ProcessorDomain, mems []numa.MemoryDomain, dataType uint8, cache bool) LBIS {
	l := LBIS{
		LBISHeader: LBISHeader{
			Type:           TypeLBIS,
			Length:         uint32(LbisLength(len(procs), len(mems))),
			Flags:          HierarchyMemory,
			DataType:       dataType,
			InitiatorCount: uint32(len(procs)),
			TargetCount:    uint32(len(mems)),
		},
		Initiators: lo.Map(procs, func(p numa.ProcessorDomain, _ int) uint32 { return uint32(p.ID) }),
		Targets:    lo.Map(mems, func(m numa.MemoryDomain, _ int) uint32 { return uint32(m.ID) }),
		Entries:    make([]uint16, 0, len(procs)*len(mems)),
	}
	switch {
	case cache && IsLatency(dataType):
		l.Flags, l.EntryBaseUnit = HierarchyLastLevelMemory, CacheLatencyBaseUnit
	case cache:
		l.Flags, l.EntryBaseUnit = HierarchyLastLevelMemory, CacheBandwidthBaseUnit
	case IsLatency(dataType):
		l.EntryBaseUnit = MemoryLatencyBaseUnit
	default:
		l.EntryBaseUnit = MemoryBandwidthBaseUnit
	}

	for _, p := range procs {
		for col, m := range mems {
			t := CellType(d.VolMemMode, cache, col, len(mems), ds.SkippedEntries)
			l.Entries = append(l.Entries, Value(dataType, t, d.VolMemMode, p.Socket != m.Socket))
		}
	}
	log.Debugf("HMAT: LBIS %s 缓存 %v\n%s", DataTypeName(dataType), cache, l.matrix())
	return l
}

func (l *LBIS) matrix() string {
	var b bytes.Buffer
	for row := range l.Initiators {
		for col := range l.Targets {
			fmt.Fprintf(&b, " %d ", l.At(row, col))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func mscis(ds *numa.Domains, l Layout) ([]MSCIS, error) {
	maxHandles := (l.MscisMaxLen - mscisSize) / 2
	var out []MSCIS
	for _, m := range ds.Cacheable() {
		if len(out) >= l.MscisCap {
			return nil, errors.Wrapf(acpi.ErrCapacity, "MSCIS上限 %d", l.MscisCap)
		}
		handles := m.SmbiosHandles
		if len(handles) > maxHandles {
			log.Warnf("HMAT: 域 %d 的SMBIOS句柄 %d 个，截断为 %d", m.ID, len(handles), maxHandles)
			handles = handles[:maxHandles]
		}
		c := MSCIS{
			MSCISHeader: MSCISHeader{
				Type:                  TypeMSCIS,
				Length:                uint32(MscisLength(len(handles))),
				MemoryProximityDomain: uint32(m.ID),
				MemorySideCacheSize:   m.SideCacheSize,
				CacheAttributes:       CacheAttributes(),
				NumSmbiosHandles:      uint16(len(handles)),
			},
			SmbiosHandles: append([]uint16(nil), handles...),
		}
		log.Debugf("HMAT: MSCIS 域 %d 缓存 %#x 句柄 %x", m.ID, m.SideCacheSize, handles)
		out = append(out, c)
	}
	return out, nil
}
