package topology

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// Validate 检查描述在固定上限之内并且前后一致
func (d *Descriptor) Validate() error {
	l := d.Limits
	if l.MaxSockets < 1 || l.MaxSockets > 8 {
		return fmt.Errorf("maxSockets必须在1到8之间，得到 %d", l.MaxSockets)
	}
	if l.MaxImc < 1 || l.MaxImc > 8 {
		return fmt.Errorf("maxImc必须在1到8之间，得到 %d", l.MaxImc)
	}
	if d.SocketPresent>>uint(l.MaxSockets) != 0 {
		return errors.Wrapf(acpi.ErrCapacity, "在位插槽位图 %#x 超出 %d 个插槽", d.SocketPresent, l.MaxSockets)
	}
	if d.FpgaPresent>>uint(l.MaxSockets) != 0 {
		return errors.Wrapf(acpi.ErrCapacity, "FPGA位图 %#x 超出 %d 个插槽", d.FpgaPresent, l.MaxSockets)
	}
	if d.NumSockets() == 0 {
		return errors.New("没有在位的插槽")
	}

	if d.SNC.Enabled {
		c := d.SNC.Clusters
		if c < 1 || c > NodesPerSocketMax || bits.OnesCount(uint(c)) != 1 {
			return fmt.Errorf("SNC簇数必须是1、2或4，得到 %d", c)
		}
		if l.MaxImc%c != 0 {
			return fmt.Errorf("maxImc %d 不能被SNC簇数 %d 整除", l.MaxImc, c)
		}
	}
	if d.VirtualNuma.Enabled && (d.VirtualNuma.Clusters < 1 || d.VirtualNuma.Clusters > DomainsPerNodeMax) {
		return fmt.Errorf("虚拟NUMA簇数必须在1到%d之间，得到 %d", DomainsPerNodeMax, d.VirtualNuma.Clusters)
	}
	if _, ok := volMemModeNames[d.VolMemMode]; !ok {
		return fmt.Errorf("未知的易失性内存模式 %d", int(d.VolMemMode))
	}
	switch d.DistanceModel {
	case DistanceHop:
	case DistanceMesh:
		if d.Mesh.DomainsPerSocket < 1 || d.Mesh.DomainsPerSocket > NodesPerSocketMax {
			return fmt.Errorf("网格模型每插槽域数必须在1到%d之间，得到 %d", NodesPerSocketMax, d.Mesh.DomainsPerSocket)
		}
	default:
		return fmt.Errorf("未知的距离模型 '%s'", d.DistanceModel)
	}
	if d.PhysicalAddressBits > 64 {
		return fmt.Errorf("物理地址位数 %d 超过64", d.PhysicalAddressBits)
	}

	seen := map[int]bool{}
	for _, s := range d.Sockets {
		if !d.SocketPresentAt(s.ID) {
			return fmt.Errorf("插槽 %d 不在在位位图 %#x 中", s.ID, d.SocketPresent)
		}
		if seen[s.ID] {
			return fmt.Errorf("插槽 %d 重复", s.ID)
		}
		seen[s.ID] = true
		if len(s.Kti) > l.KtiPorts {
			return errors.Wrapf(acpi.ErrCapacity, "插槽 %d 有 %d 个KTI端口，上限 %d", s.ID, len(s.Kti), l.KtiPorts)
		}
		if len(s.ImcSizes) > l.MaxImc || len(s.DdrCacheSizes) > l.MaxImc {
			return fmt.Errorf("插槽 %d 的IMC容量项多于 %d", s.ID, l.MaxImc)
		}
	}

	if len(d.MemoryMap) > 64 {
		return errors.Wrapf(acpi.ErrCapacity, "内存映射有 %d 项，上限64", len(d.MemoryMap))
	}
	for i, r := range d.MemoryMap {
		if !d.SocketPresentAt(r.Socket) {
			return fmt.Errorf("内存区域 %d 位于不在位的插槽 %d", i, r.Socket)
		}
		if _, ok := memTypeNames[r.Type]; !ok {
			return fmt.Errorf("内存区域 %d 类型未知", i)
		}
		if r.ImcBitmap>>uint(l.MaxImc) != 0 {
			return fmt.Errorf("内存区域 %d 的IMC位图 %#x 超出 %d 个IMC", i, r.ImcBitmap, l.MaxImc)
		}
		if r.Node < 0 || r.Node >= d.McMaxNode() {
			return errors.Wrapf(acpi.ErrCapacity, "内存区域 %d 的节点 %d 超出 %d", i, r.Node, d.McMaxNode())
		}
	}

	if len(d.Threads) > l.MaxThreads {
		return errors.Wrapf(acpi.ErrCapacity, "有 %d 个线程，上限 %d", len(d.Threads), l.MaxThreads)
	}
	for i, t := range d.Threads {
		if !d.SocketPresentAt(t.Socket) {
			return fmt.Errorf("线程 %d 位于不在位的插槽 %d", i, t.Socket)
		}
	}
	return nil
}
