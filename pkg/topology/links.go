package topology

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
)

// Interconnect 回答两个物理插槽之间是否有直接链路
type Interconnect interface {
	Linked(a, b int) bool
	Hops(a, b int) int
}

// Unreachable 是两个插槽之间没有路径时的跳数
const Unreachable = -1

// LinkGraph 是由KTI/UPI对端表构造的无向插槽链路图
type LinkGraph struct {
	g *simple.UndirectedGraph
}

// NewLinkGraph 为每个在位插槽建立节点，每个有效端口建立一条边
func NewLinkGraph(d *Descriptor) *LinkGraph {
	g := simple.NewUndirectedGraph()
	for _, phys := range d.PresentSockets() {
		g.AddNode(simple.Node(phys))
	}
	for _, s := range d.Sockets {
		for port, k := range s.Kti {
			if k.Down {
				continue
			}
			if k.Peer == s.ID || !d.SocketPresentAt(k.Peer) || !d.SocketPresentAt(s.ID) {
				log.Warnf("插槽 %d 端口 %d 的对端 %d 无效，忽略", s.ID, port, k.Peer)
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(s.ID), T: simple.Node(k.Peer)})
		}
	}
	return &LinkGraph{g: g}
}

// Linked 判断两个不同插槽之间是否有直接链路，同一插槽返回false
func (l *LinkGraph) Linked(a, b int) bool {
	if a == b {
		return false
	}
	return l.g.HasEdgeBetween(int64(a), int64(b))
}

// Hops 返回两个插槽之间最短路径的跳数，不可达时返回Unreachable
func (l *LinkGraph) Hops(a, b int) int {
	if a == b {
		return 0
	}
	n := l.g.Node(int64(a))
	if n == nil {
		return Unreachable
	}
	w := path.DijkstraFrom(n, l.g).WeightTo(int64(b))
	if math.IsInf(w, 1) {
		return Unreachable
	}
	return int(w)
}

// Isolated 是缺少互联信息时使用的退化实现，任意两个插槽都不相连
type Isolated struct{}

// Linked 总是返回false
func (Isolated) Linked(a, b int) bool { return false }

// Hops 同一插槽为0，否则不可达
func (Isolated) Hops(a, b int) int {
	if a == b {
		return 0
	}
	return Unreachable
}

// Interconnect 返回描述文件的链路图；没有任何端口信息时退化为Isolated
func (d *Descriptor) Interconnect() Interconnect {
	for _, s := range d.Sockets {
		if len(s.Kti) > 0 {
			return NewLinkGraph(d)
		}
	}
	if d.NumSockets() > 1 {
		log.Warnf("描述文件没有KTI端口信息，按插槽之间互不相连处理")
	}
	return Isolated{}
}
