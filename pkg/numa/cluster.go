package numa

import (
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// ClusterDomain 返回易失性区域所在的物理簇域(未乘虚拟NUMA系数)
// withMixOffset为true时，混合模式下的2LM区域排在全部1LM域之后
func ClusterDomain(d *topology.Descriptor, r topology.Region, withMixOffset bool) int {
	logical := d.LogicalSocket(r.Socket)
	c := d.SNCClusters()
	dom := logical
	if d.SNC.Enabled {
		imcPerCluster := d.Limits.MaxImc / c
		if imcPerCluster < 1 {
			imcPerCluster = 1
		}
		dom = logical*c + topology.FirstImc(r.ImcBitmap)/imcPerCluster
	}
	if withMixOffset && d.VolMemMode == topology.VolMemModeMix1LM2LM && r.Type.Is2LM() {
		dom += d.NumSockets() * c
	}
	return dom
}

// VirtualDomain 把簇域按虚拟NUMA系数展开，index是区域在内存映射中的序号
func VirtualDomain(d *topology.Descriptor, clusterDomain, index int) int {
	vnf := d.VNF()
	return clusterDomain*vnf + index%vnf
}

// CollocatedChaPresent 判断线程表是否带有同位CHA编号：
// 第一个非零的CHA编号不是0xFF即为存在
func CollocatedChaPresent(threads []topology.Thread) bool {
	for _, t := range threads {
		if t.ChaID != 0 {
			return t.ChaID != topology.NoCollocatedCha
		}
	}
	return false
}

// ThreadDomain 返回线程所在的SNC邻近域
func ThreadDomain(d *topology.Descriptor, t topology.Thread, collocated bool) int {
	logical := d.LogicalSocket(t.Socket)
	var c int
	switch {
	case d.SNC.Enabled:
		c = d.SNCClusters() * d.VNF()
	case d.VirtualNuma.Enabled:
		c = d.VNF()
	default:
		return logical
	}

	totCha := 0
	if s := d.SocketByID(t.Socket); s != nil {
		totCha = s.TotalCha
	}
	chaPerCluster := totCha / c
	if chaPerCluster < 1 {
		chaPerCluster = 1
	}
	var idx int
	if collocated {
		idx = int(t.ChaID) / chaPerCluster
	} else {
		idx = int(t.ThreadID) / (chaPerCluster * d.Limits.ThreadsPerCore)
	}
	if idx >= c {
		idx = c - 1
	}
	return logical*c + idx
}
