package slit

import (
	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// 网格模型中插槽内节点的坐标，超出范围的节点视为(0,0)
func meshCoordinates(node int) (x, y int) {
	switch node {
	case 1:
		return 1, 0
	case 2:
		return 0, 1
	case 3:
		return 1, 1
	}
	return 0, 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// meshOnSocket 是同一插槽内两节点的曼哈顿距离加上自身距离
func meshOnSocket(a, b int) uint8 {
	x1, y1 := meshCoordinates(a)
	x2, y2 := meshCoordinates(b)
	return uint8(abs(x1-x2) + abs(y1-y2) + ZeroHop)
}

// meshRemote 只区分上下两半，跨插槽流量同时走两条链路
func meshRemote(local, remote int) uint8 {
	d := OneHop
	if local >= topology.NodesPerSocketMax/2 {
		d++
	}
	if remote >= topology.NodesPerSocketMax/2 {
		d++
	}
	return uint8(d)
}

// MeshDistance 返回全局节点a和b之间的距离
func MeshDistance(a, b, domainsPerSocket int) uint8 {
	if a/domainsPerSocket == b/domainsPerSocket {
		return meshOnSocket(a%domainsPerSocket, b%domainsPerSocket)
	}
	return meshRemote(a%domainsPerSocket, b%domainsPerSocket)
}

// BuildMesh 按每插槽2x2网格计算距离矩阵
func BuildMesh(d *topology.Descriptor) (*Matrix, error) {
	per := d.Mesh.DomainsPerSocket
	if per < 1 || per > topology.NodesPerSocketMax {
		return nil, errors.Errorf("每插槽域数 %d 不在 1..%d 之间", per, topology.NodesPerSocketMax)
	}
	n := per * d.NumSockets()
	if capacity := Capacity(d); n >= capacity {
		return nil, errors.Wrapf(acpi.ErrCapacity, "SLIT需要 %d 个节点，上限 %d", n, capacity)
	}
	m := newMatrix(n, n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			m.set(a, b, MeshDistance(a, b, per))
		}
	}
	return m, nil
}
