package slit

import (
	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Build 按跳数模型计算距离矩阵
// ic为nil时使用描述文件自带的链路信息
func Build(d *topology.Descriptor, ic topology.Interconnect) (*Matrix, error) {
	if ic == nil {
		ic = d.Interconnect()
	}
	n := NodesOf(d)
	count := n.Count()
	capacity := Capacity(d)
	if count*count >= capacity*capacity {
		log.Errorf("SLIT: 节点距离数据 (%d) 超出表容量 (%d)", count*count, capacity*capacity)
		return nil, errors.Wrapf(acpi.ErrCapacity, "SLIT需要 %d 个节点，上限 %d", count, capacity)
	}
	if n.Clusters < 1 {
		return nil, errors.New("SLIT: 每插槽簇数为0")
	}
	log.Infof("SLIT: NumCpus %d, NumClusters %d, PmemNodeCount %d -> NodeCount %d FpgaCount %d",
		n.NumCpus, n.Clusters, len(n.PmemSockets), count, len(n.FpgaSockets))

	b := &builder{n: n, ic: ic, m: newMatrix(count, capacity)}
	if n.Mixed {
		b.mixedSockets()
		b.mixedLinks()
	} else {
		b.sockets()
		b.links()
	}
	b.pmems()
	b.fpgas()
	b.remaining()
	b.unused()
	log.Debugf("%v", b.m)
	return b.m, nil
}

type builder struct {
	n  Nodes
	ic topology.Interconnect
	m  *Matrix
}

func (b *builder) linked(a, c int) bool {
	return b.ic.Linked(a, c)
}

// 同一插槽内的簇节点
func (b *builder) sockets() {
	nc := b.n.Clusters
	vnf := b.n.VNF
	log.Debugf("SLIT: 填写同一插槽内的节点")
	for src := 0; src < b.n.Volatile(); src++ {
		socket := src / nc
		cluster := src % nc
		for tc := 0; tc < nc; tc++ {
			if cluster/vnf == tc/vnf {
				b.m.set(src, socket*nc+tc, ZeroHop)
			} else {
				b.m.set(src, socket*nc+tc, ZeroOne)
			}
		}
	}
}

// 混合模式下同一插槽内的1LM和2LM节点
func (b *builder) mixedSockets() {
	nc := b.n.Clusters
	per := b.n.NumCpus * nc
	log.Debugf("SLIT: 混合模式下填写同一插槽内的节点")
	for src := 0; src < b.n.Volatile(); src++ {
		socket, is2LM := b.n.cpuLogical(src)
		cluster := src % nc
		for tc := 0; tc < nc; tc++ {
			to1LM := socket*nc + tc
			to2LM := to1LM + per
			same := cluster == tc
			switch {
			case same && !is2LM:
				b.m.set(src, to1LM, ZeroHop)
				b.m.set(src, to2LM, ZeroOne)
			case same && is2LM:
				b.m.set(src, to1LM, ZeroOne)
				b.m.set(src, to2LM, ZeroHop)
			case !is2LM:
				b.m.set(src, to1LM, ZeroOne)
				b.m.set(src, to2LM, ZeroTwo)
			default:
				b.m.set(src, to1LM, ZeroTwo)
				b.m.set(src, to2LM, ZeroTwo)
			}
		}
	}
}

// 直接相连的插槽之间
func (b *builder) links() {
	nc := b.n.Clusters
	d := b.n.d
	log.Debugf("SLIT: 填写插槽之间的链路")
	for src := 0; src < b.n.Volatile(); src++ {
		from := d.PhysicalSocket(src / nc)
		for ts := 0; ts < b.n.NumCpus; ts++ {
			if !b.linked(from, d.PhysicalSocket(ts)) {
				continue
			}
			for tc := 0; tc < nc; tc++ {
				b.m.set(src, ts*nc+tc, OneHop)
			}
		}
	}
}

func (b *builder) mixedLinks() {
	nc := b.n.Clusters
	per := b.n.NumCpus * nc
	d := b.n.d
	log.Debugf("SLIT: 混合模式下填写插槽之间的链路")
	for src := 0; src < b.n.Volatile(); src++ {
		logical, is2LM := b.n.cpuLogical(src)
		from := d.PhysicalSocket(logical)
		for ts := 0; ts < b.n.NumCpus; ts++ {
			if !b.linked(from, d.PhysicalSocket(ts)) {
				continue
			}
			for tc := 0; tc < nc; tc++ {
				to1LM := ts*nc + tc
				if is2LM {
					b.m.set(src, to1LM, OneOne)
					b.m.set(src, to1LM+per, OneTwo)
				} else {
					b.m.set(src, to1LM, OneHop)
					b.m.set(src, to1LM+per, OneOne)
				}
			}
		}
	}
}

// pmemDistance 是持久内存节点与另一插槽上节点的距离
func (b *builder) pmemDistance(a, c int) uint8 {
	switch {
	case a == c:
		return PmemOneOne
	case b.linked(a, c):
		return PmemOneHop
	}
	return PmemTwoHop
}

func (b *builder) pmems() {
	if len(b.n.PmemSockets) == 0 {
		log.Debugf("SLIT: 没有持久内存节点")
		return
	}
	log.Debugf("SLIT: 加入持久内存节点")
	vol := b.n.Volatile()
	pmem := b.n.PmemSockets

	for sp, ss := range pmem {
		for tp, ts := range pmem {
			if sp == tp {
				b.m.set(vol+sp, vol+tp, PmemZeroHop)
				continue
			}
			b.m.set(vol+sp, vol+tp, b.pmemDistance(ss, ts))
		}
	}

	for src := 0; src < vol; src++ {
		from := b.n.socketOf(src)
		for tp, ts := range pmem {
			b.m.set(src, vol+tp, b.pmemDistance(from, ts))
			b.m.set(vol+tp, src, b.pmemDistance(ts, from))
		}
	}
}

func (b *builder) fpgas() {
	if len(b.n.FpgaSockets) == 0 {
		return
	}
	log.Debugf("SLIT: 加入FPGA节点")
	count := b.m.N
	first := count - len(b.n.FpgaSockets)
	for src := first; src < count; src++ {
		from := b.n.socketOf(src)
		for dst := 0; dst < count; dst++ {
			to := b.n.socketOf(dst)
			var v uint8
			switch {
			case from == to:
				v = ZeroHop
			case b.linked(from, to):
				v = OneHop
			default:
				v = TwoHop
			}
			b.m.set(src, dst, v)
			b.m.set(dst, src, v)
		}
	}
}

// remaining 把没有直接链路的节点对设为两跳
func (b *builder) remaining() {
	log.Debugf("SLIT: 填写剩余的单元")
	cells := b.m.Localities()
	for i := range cells {
		if cells[i] == Unset {
			cells[i] = TwoHop
		}
	}
}

func (b *builder) unused() {
	tail := b.m.Entries[b.m.N*b.m.N:]
	for i := range tail {
		tail[i] = 0
	}
}
