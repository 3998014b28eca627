package topology

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

const fourSocketRing = `
oem: {id: INTEL, tableId: WHITLEY}
socketPresent: 0xd
snc: {enabled: true, clusters: 2}
volMemMode: mix
sockets:
  - {id: 0, kti: [{peer: 2}, {peer: 3}]}
  - {id: 2, kti: [{peer: 0}, {peer: 3, down: true}]}
  - {id: 3, kti: [{peer: 0}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0, size: 0x80000000, imcBitmap: 0x3}
  - {socket: 3, type: 2lm-ddr-cache, base: 0x100000000, size: 0x80000000, imcBitmap: 0xc, node: 12}
`

func TestDescriptor(t *testing.T) {
	Convey("解析一个三插槽的描述", t, func() {
		d, err := Parse([]byte(fourSocketRing))
		So(err, ShouldBeNil)

		Convey("补全默认值", func() {
			So(d.Limits, ShouldResemble, DefaultLimits)
			So(d.DistanceModel, ShouldEqual, DistanceHop)
			So(d.OEM.CreatorID, ShouldEqual, "NUMA")
			So(d.SocketByID(2).ImcEnabled, ShouldEqual, 0xf)
			So(d.VolMemMode, ShouldEqual, VolMemModeMix1LM2LM)
			So(d.MemoryMap[1].Type, ShouldEqual, MemType2lmDdrCacheMemoryMode)
		})

		Convey("簇数和容量", func() {
			So(d.SNCClusters(), ShouldEqual, 2)
			So(d.VNF(), ShouldEqual, 1)
			So(d.NumClusters(), ShouldEqual, 2)
			So(d.McMaxNode(), ShouldEqual, 16)
			So(d.MaxMemoryDomains(), ShouldEqual, 128)
			So(d.MaxProcessorDomains(), ShouldEqual, 32)
		})

		Convey("逻辑和物理插槽号互相转换", func() {
			So(d.NumSockets(), ShouldEqual, 3)
			So(d.LogicalSocket(0), ShouldEqual, 0)
			So(d.LogicalSocket(2), ShouldEqual, 1)
			So(d.LogicalSocket(3), ShouldEqual, 2)
			So(d.LogicalSocket(1), ShouldEqual, InvalidSocket)
			So(d.PhysicalSocket(2), ShouldEqual, 3)
			So(d.PhysicalSocket(3), ShouldEqual, InvalidSocket)
			So(d.PresentSockets(), ShouldResemble, []int{0, 2, 3})
		})

		Convey("链路图", func() {
			ic := d.Interconnect()
			So(ic.Linked(0, 2), ShouldBeTrue)
			So(ic.Linked(2, 0), ShouldBeTrue)
			So(ic.Linked(0, 0), ShouldBeFalse)
			So(ic.Linked(2, 3), ShouldBeFalse)
			So(ic.Hops(2, 3), ShouldEqual, 2)
			So(ic.Hops(3, 3), ShouldEqual, 0)
			So(ic.Hops(1, 3), ShouldEqual, Unreachable)
		})
	})

	Convey("没有端口信息时退化为互不相连", t, func() {
		d, err := Parse([]byte("sockets: [{id: 0}, {id: 1}]\n"))
		So(err, ShouldBeNil)
		ic := d.Interconnect()
		So(ic.Linked(0, 1), ShouldBeFalse)
		So(ic.Hops(0, 1), ShouldEqual, Unreachable)
	})
}

func TestValidate(t *testing.T) {
	Convey("拒绝不一致的描述", t, func() {
		cases := map[string]string{
			"SNC簇数":  "sockets: [{id: 0}]\nsnc: {enabled: true, clusters: 3}\n",
			"区域插槽":   "sockets: [{id: 0}]\nmemoryMap: [{socket: 1, type: 1lm-ddr}]\n",
			"内存类型":   "sockets: [{id: 0}]\nmemoryMap: [{socket: 0, type: hbm}]\n",
			"模式":     "sockets: [{id: 0}]\nvolMemMode: 3lm\n",
			"距离模型":   "sockets: [{id: 0}]\ndistanceModel: ring\n",
			"没有插槽":   "oem: {id: X}\n",
			"重复插槽":   "sockets: [{id: 0}, {id: 0}]\n",
			"IMC位图":  "sockets: [{id: 0}]\nmemoryMap: [{socket: 0, type: 1lm-ddr, imcBitmap: 0x10}]\n",
			"虚拟NUMA": "sockets: [{id: 0}]\nvirtualNuma: {enabled: true, clusters: 4}\n",
		}
		for name, y := range cases {
			_, err := Parse([]byte(y))
			So(err, ShouldNotBeNil)
			_ = name
		}
	})

	Convey("超出插槽上限是容量错误", t, func() {
		_, err := Parse([]byte("limits: {maxSockets: 2}\nsocketPresent: 0x7\n"))
		So(errors.Cause(err), ShouldEqual, acpi.ErrCapacity)
	})
}

func TestMemTypePredicates(t *testing.T) {
	Convey("内存类型分类", t, func() {
		So(MemType1lmDdr.IsVolatile(), ShouldBeTrue)
		So(MemType2lmDdrCacheMemoryMode.Is2LM(), ShouldBeTrue)
		So(MemType1lmAppDirect.IsVolatile(), ShouldBeFalse)
		So(MemType1lmAppDirect.IsAppDirect(), ShouldBeTrue)
		So(MemType1lmAppDirectReserved.IsReserved(), ShouldBeTrue)
		So(MemTypeFpga.IsFpga(), ShouldBeTrue)
		So(MemTypeFpga.IsVolatile(), ShouldBeFalse)
		So(MemTypeNxm.IsReserved(), ShouldBeTrue)
		So(FirstImc(0), ShouldEqual, 0)
		So(FirstImc(0xc), ShouldEqual, 2)
	})
}
