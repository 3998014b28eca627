// Package topology 描述平台的静态拓扑事实：插槽、IMC、SNC和内存映射
package topology

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/smbios"
)

// 固定的拓扑上限
const (
	// DomainsPerNodeMax 是虚拟NUMA最多把一个簇拆成的份数
	DomainsPerNodeMax = 2
	// NodesPerSocketMax 是每个插槽最多的SNC簇数
	NodesPerSocketMax = 4
	// PmemNodesPerSocketMax 是每个插槽最多的持久内存节点数
	PmemNodesPerSocketMax = 8
	// InvalidSocket 表示不存在的插槽
	InvalidSocket = 0xFF
	// AbsentApicID 表示APIC映射中不存在的线程
	AbsentApicID = 0xFF
	// NoCollocatedCha 表示线程没有同位CHA
	NoCollocatedCha = 0xFF
)

// Limits 是平台结构的上限，决定各表的固定容量
type Limits struct {
	MaxSockets        int `yaml:"maxSockets" json:"maxSockets"`
	MaxImc            int `yaml:"maxImc" json:"maxImc"`
	ChannelsPerImc    int `yaml:"channelsPerImc" json:"channelsPerImc"`
	DimmsPerChannel   int `yaml:"dimmsPerChannel" json:"dimmsPerChannel"`
	CrsEntriesPerNode int `yaml:"crsEntriesPerNode" json:"crsEntriesPerNode"`
	KtiPorts          int `yaml:"ktiPorts" json:"ktiPorts"`
	ThreadsPerCore    int `yaml:"threadsPerCore" json:"threadsPerCore"`
	MaxThreads        int `yaml:"maxThreads" json:"maxThreads"`
}

// DefaultLimits 对应四路平台
var DefaultLimits = Limits{
	MaxSockets:        4,
	MaxImc:            4,
	ChannelsPerImc:    2,
	DimmsPerChannel:   2,
	CrsEntriesPerNode: 8,
	KtiPorts:          3,
	ThreadsPerCore:    2,
	MaxThreads:        4 * 256,
}

// Clustering 是SNC或虚拟NUMA的开关和簇数
type Clustering struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	Clusters int  `yaml:"clusters" json:"clusters"`
}

// MemHotPlug 是内存热插拔选项
type MemHotPlug struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Base 为0时根据TOHM自动计算，否则以0x80(4GB单位)为步长
	Base uint32 `yaml:"base" json:"base"`
	// Length 是每个热插拔节点的长度选项
	Length uint32 `yaml:"length" json:"length"`
	// Tohm 是最高内存地址(字节)
	Tohm uint64 `yaml:"tohm" json:"tohm"`
}

// Mesh 是网格距离模型的参数
type Mesh struct {
	DomainsPerSocket int `yaml:"domainsPerSocket" json:"domainsPerSocket"`
}

// KtiPort 是插槽间链路表中的一项
type KtiPort struct {
	Peer int  `yaml:"peer" json:"peer"`
	Down bool `yaml:"down" json:"down"`
}

// Socket 是一个物理插槽
type Socket struct {
	// ID 是物理插槽号
	ID int `yaml:"id" json:"id"`
	// ImcEnabled 是启用的IMC位图，未设置时视为全部启用
	ImcEnabled uint8 `yaml:"imcEnabled" json:"imcEnabled"`
	// ImcSizes 是每个IMC的DDR容量(字节)，2LM模式下即缓存大小
	ImcSizes []uint64 `yaml:"imcSizes" json:"imcSizes"`
	// DdrCacheSizes 是混合模式下每个IMC用作缓存的DDR容量(字节)
	DdrCacheSizes []uint64  `yaml:"ddrCacheSizes" json:"ddrCacheSizes"`
	TotalCha      int       `yaml:"totalCha" json:"totalCha"`
	Kti           []KtiPort `yaml:"kti" json:"kti"`
	// ApicIDs 是CPU热插拔时该插槽全部可能的APIC id
	ApicIDs []uint32 `yaml:"apicIds" json:"apicIds"`
}

// Region 是内存映射中的一段区域
type Region struct {
	// Socket 是物理插槽号
	Socket    int     `yaml:"socket" json:"socket"`
	Type      MemType `yaml:"type" json:"type"`
	Base      uint64  `yaml:"base" json:"base"`
	Size      uint64  `yaml:"size" json:"size"`
	ImcBitmap uint8   `yaml:"imcBitmap" json:"imcBitmap"`
	Node      int     `yaml:"node" json:"node"`
}

// Thread 是一个已启用的逻辑处理器
type Thread struct {
	Socket   int    `yaml:"socket" json:"socket"`
	ApicID   uint32 `yaml:"apicId" json:"apicId"`
	ThreadID uint32 `yaml:"threadId" json:"threadId"`
	ChaID    uint32 `yaml:"chaId" json:"chaId"`
}

// Descriptor 是一台平台的完整拓扑描述
type Descriptor struct {
	OEM    acpi.OEM `yaml:"oem" json:"oem"`
	Limits Limits   `yaml:"limits" json:"limits"`

	SocketPresent uint32 `yaml:"socketPresent" json:"socketPresent"`
	FpgaPresent   uint32 `yaml:"fpgaPresent" json:"fpgaPresent"`

	SNC         Clustering `yaml:"snc" json:"snc"`
	VirtualNuma Clustering `yaml:"virtualNuma" json:"virtualNuma"`
	VolMemMode  VolMemMode `yaml:"volMemMode" json:"volMemMode"`
	HalfWidth   bool       `yaml:"halfWidth" json:"halfWidth"`
	X2APIC      bool       `yaml:"x2apic" json:"x2apic"`
	CPUHotPlug  bool       `yaml:"cpuHotPlug" json:"cpuHotPlug"`
	MemHotPlug  MemHotPlug `yaml:"memHotPlug" json:"memHotPlug"`

	PhysicalAddressBits uint8         `yaml:"physicalAddressBits" json:"physicalAddressBits"`
	DistanceModel       DistanceModel `yaml:"distanceModel" json:"distanceModel"`
	Mesh                Mesh          `yaml:"mesh" json:"mesh"`
	// SmbiosByDeviceSet 按记录上的NUMA标签而不是IMC位置选择SMBIOS句柄
	SmbiosByDeviceSet bool `yaml:"smbiosByDeviceSet" json:"smbiosByDeviceSet"`

	Sockets   []Socket    `yaml:"sockets" json:"sockets"`
	MemoryMap []Region    `yaml:"memoryMap" json:"memoryMap"`
	Threads   []Thread    `yaml:"threads" json:"threads"`
	Smbios    smbios.List `yaml:"smbios" json:"smbios"`
}

// Load 读取并校验YAML描述文件
func Load(path string) (*Descriptor, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "描述文件 %s", path)
	}
	return d, nil
}

// Parse 解析YAML描述，补全默认值后校验
func Parse(buf []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := yaml.Unmarshal(buf, d); err != nil {
		return nil, errors.Wrap(err, "无法解析拓扑描述")
	}
	d.SetDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetDefaults 补全未填写的字段
func (d *Descriptor) SetDefaults() {
	l := &d.Limits
	def := DefaultLimits
	if l.MaxSockets == 0 {
		l.MaxSockets = def.MaxSockets
	}
	if l.MaxImc == 0 {
		l.MaxImc = def.MaxImc
	}
	if l.ChannelsPerImc == 0 {
		l.ChannelsPerImc = def.ChannelsPerImc
	}
	if l.DimmsPerChannel == 0 {
		l.DimmsPerChannel = def.DimmsPerChannel
	}
	if l.CrsEntriesPerNode == 0 {
		l.CrsEntriesPerNode = def.CrsEntriesPerNode
	}
	if l.KtiPorts == 0 {
		l.KtiPorts = def.KtiPorts
	}
	if l.ThreadsPerCore == 0 {
		l.ThreadsPerCore = def.ThreadsPerCore
	}
	if l.MaxThreads == 0 {
		l.MaxThreads = l.MaxSockets * 256
	}
	if d.SocketPresent == 0 {
		for _, s := range d.Sockets {
			d.SocketPresent |= 1 << uint(s.ID)
		}
	}
	for i := range d.Sockets {
		if d.Sockets[i].ImcEnabled == 0 {
			d.Sockets[i].ImcEnabled = uint8(1<<uint(l.MaxImc) - 1)
		}
	}
	if d.SNC.Enabled && d.SNC.Clusters == 0 {
		d.SNC.Clusters = 2
	}
	if d.VirtualNuma.Enabled && d.VirtualNuma.Clusters == 0 {
		d.VirtualNuma.Clusters = 2
	}
	if d.DistanceModel == "" {
		d.DistanceModel = DistanceHop
	}
	if d.DistanceModel == DistanceMesh && d.Mesh.DomainsPerSocket == 0 {
		d.Mesh.DomainsPerSocket = NodesPerSocketMax
	}
	if d.PhysicalAddressBits == 0 {
		d.PhysicalAddressBits = 46
	}
	if d.OEM.ID == "" {
		d.OEM.ID = "INTEL"
	}
	if d.OEM.TableID == "" {
		d.OEM.TableID = "PLATFORM"
	}
	if d.OEM.CreatorID == "" {
		d.OEM.CreatorID = "NUMA"
	}
}

// SNCClusters 返回每个插槽的物理簇数，SNC关闭时为1
func (d *Descriptor) SNCClusters() int {
	if !d.SNC.Enabled || d.SNC.Clusters < 1 {
		return 1
	}
	return d.SNC.Clusters
}

// VNF 返回虚拟NUMA系数，关闭时为1
func (d *Descriptor) VNF() int {
	if !d.VirtualNuma.Enabled || d.VirtualNuma.Clusters < 1 {
		return 1
	}
	return d.VirtualNuma.Clusters
}

// NumClusters 返回每个插槽的NUMA节点数(物理簇数乘以虚拟NUMA系数)
func (d *Descriptor) NumClusters() int {
	return d.SNCClusters() * d.VNF()
}

// McMaxNode 返回可能的内存控制器节点数，即热插拔范围的数量
func (d *Descriptor) McMaxNode() int {
	return d.Limits.MaxSockets * d.Limits.MaxImc
}

// MaxMemoryDomains 返回内存邻近域的容量
func (d *Descriptor) MaxMemoryDomains() int {
	return d.McMaxNode() * d.Limits.CrsEntriesPerNode
}

// MaxProcessorDomains 返回处理器邻近域的容量
func (d *Descriptor) MaxProcessorDomains() int {
	return d.Limits.MaxSockets * NodesPerSocketMax * DomainsPerNodeMax
}

// MaxMemoryRegions 返回一张表中内存范围结构的容量
func (d *Descriptor) MaxMemoryRegions() int {
	return d.MaxMemoryDomains()
}

// SocketByID 按物理插槽号查找插槽，不存在时返回nil
func (d *Descriptor) SocketByID(id int) *Socket {
	for i := range d.Sockets {
		if d.Sockets[i].ID == id {
			return &d.Sockets[i]
		}
	}
	return nil
}

// SmbiosLayout 返回SMBIOS记录的排列方式
func (d *Descriptor) SmbiosLayout() smbios.Layout {
	return smbios.Layout{
		MaxImc:          d.Limits.MaxImc,
		ChannelsPerImc:  d.Limits.ChannelsPerImc,
		DimmsPerChannel: d.Limits.DimmsPerChannel,
		HalfWidth:       d.HalfWidth,
	}
}
