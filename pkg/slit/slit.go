// Package slit 构建系统局部距离信息表(SLIT)
package slit

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// 节点之间的相对距离
const (
	ZeroHop   = 10
	ZeroOne   = 11
	ZeroTwo   = 12
	ZeroThree = 13
	OneHop    = 20
	OneOne    = 21
	OneTwo    = 22
	TwoHop    = 30
	ThreeHop  = 40

	PmemZeroHop = 10
	PmemOneOne  = 17
	PmemOneHop  = 28
	PmemTwoHop  = 38
)

// Unset 是尚未填写的单元
const Unset = 0xFF

// Revision 是生成的SLIT版本
const Revision = 1

// Nodes 是SLIT节点的排列：先是每个插槽的簇节点(混合模式下1LM在前2LM在后)，
// 然后是持久内存节点，最后是FPGA节点
type Nodes struct {
	// NumCpus 是在位插槽数
	NumCpus int
	// Clusters 是每个插槽的簇节点数(已乘虚拟NUMA系数)
	Clusters int
	// VNF 是虚拟NUMA系数
	VNF   int
	Mixed bool
	// PmemSockets 是每个持久内存节点所在的物理插槽
	PmemSockets []int
	// FpgaSockets 是每个FPGA节点所在的物理插槽
	FpgaSockets []int

	d *topology.Descriptor
}

// NodesOf 从拓扑描述推导节点排列
// 持久内存节点取内存映射中非保留的AppDirect区域，按映射顺序，相同基址只算一次
func NodesOf(d *topology.Descriptor) Nodes {
	var bases []uint64
	var pmem []int
	for _, r := range d.MemoryMap {
		if !r.Type.IsAppDirect() || r.Type.IsReserved() || lo.Contains(bases, r.Base) {
			continue
		}
		bases = append(bases, r.Base)
		pmem = append(pmem, r.Socket)
	}
	return Nodes{
		NumCpus:     d.NumSockets(),
		Clusters:    d.NumClusters(),
		VNF:         d.VNF(),
		Mixed:       d.VolMemMode == topology.VolMemModeMix1LM2LM,
		PmemSockets: pmem,
		FpgaSockets: d.FpgaSockets(),
		d:           d,
	}
}

// Volatile 返回易失性(插槽簇)节点数
func (n Nodes) Volatile() int {
	v := n.NumCpus * n.Clusters
	if n.Mixed {
		v *= topology.DomainsPerNodeMax
	}
	return v
}

// Count 返回全部节点数
func (n Nodes) Count() int {
	return n.Volatile() + len(n.PmemSockets) + len(n.FpgaSockets)
}

// Capacity 返回节点数上限
func Capacity(d *topology.Descriptor) int {
	return d.Limits.MaxSockets * (topology.NodesPerSocketMax*topology.DomainsPerNodeMax + topology.PmemNodesPerSocketMax)
}

// cpuLogical 返回易失性节点所在的逻辑插槽和是否为2LM节点
func (n Nodes) cpuLogical(node int) (logical int, is2LM bool) {
	per := n.NumCpus * n.Clusters
	if n.Mixed && node >= per {
		return (node - per) / n.Clusters, true
	}
	return node / n.Clusters, false
}

// socketOf 返回任意节点所在的物理插槽
func (n Nodes) socketOf(node int) int {
	vol := n.Volatile()
	switch {
	case node < vol:
		logical, _ := n.cpuLogical(node)
		return n.d.PhysicalSocket(logical)
	case node < vol+len(n.PmemSockets):
		return n.PmemSockets[node-vol]
	default:
		return n.FpgaSockets[node-vol-len(n.PmemSockets)]
	}
}

// Matrix 是按行存放的N×N距离矩阵，后面跟着容量内未使用的单元
type Matrix struct {
	N       int
	Entries []uint8
}

func newMatrix(n, capacity int) *Matrix {
	m := &Matrix{N: n, Entries: make([]uint8, capacity*capacity)}
	for i := range m.Entries {
		m.Entries[i] = Unset
	}
	return m
}

// At 返回from到to的距离
func (m *Matrix) At(from, to int) uint8 {
	return m.Entries[from*m.N+to]
}

func (m *Matrix) set(from, to int, v uint8) {
	m.Entries[from*m.N+to] = v
}

// Localities 返回序列化部分，即前N²个单元
func (m *Matrix) Localities() []uint8 {
	return m.Entries[:m.N*m.N]
}

// String 每行一个节点，以十六进制输出
func (m *Matrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SLIT: Dump table (size %d):\n", m.N)
	for i, e := range m.Localities() {
		fmt.Fprintf(&b, "%02X ", e)
		if i%m.N == m.N-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
