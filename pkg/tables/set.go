// Package tables 从一份拓扑描述构建全部表，得到访问者遍历的根节点
package tables

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/msct"
	"github.com/tinytoy-sec/NumaTableGen/pkg/numa"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/srat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

// Signature 是Set自身的签名，不是真正的ACPI表
const Signature = "SET"

// Set 是一组表，按SRAT、SLIT、HMAT、MSCT的顺序排列
type Set struct {
	Tables []acpi.Table
	// Errors 记录没能生成的表，键为签名
	Errors map[string]string `json:",omitempty"`
	// Domains 是构建时分配的邻近域，从目录或集合文件读入时为nil
	Domains *numa.Domains `json:",omitempty"`
	// Hops 是在位插槽之间的链路跳数，按物理插槽排列，不可达为topology.Unreachable
	Hops [][]int `json:",omitempty"`
}

// 构建顺序
var order = []string{acpi.SigSRAT, acpi.SigSLIT, acpi.SigHMAT, acpi.SigMSCT}

// Build 分别构建每张表：一张表超出容量只影响它自己，其余的表照常生成
// 邻近域分配失败时SRAT和HMAT都无法生成
func Build(d *topology.Descriptor) (*Set, error) {
	s := &Set{Errors: map[string]string{}}

	ds, domErr := numa.Assign(d, d.Smbios)
	if domErr != nil {
		log.Errorf("邻近域分配失败: %v", domErr)
	}
	s.Domains = ds
	s.Hops = SocketHops(d)

	builders := map[string]func() (acpi.Table, error){
		acpi.SigSRAT: func() (acpi.Table, error) {
			if domErr != nil {
				return nil, domErr
			}
			return srat.Build(d, ds)
		},
		acpi.SigSLIT: func() (acpi.Table, error) {
			m, err := Distances(d)
			if err != nil {
				return nil, err
			}
			return slit.New(d.OEM, m)
		},
		acpi.SigHMAT: func() (acpi.Table, error) {
			if domErr != nil {
				return nil, domErr
			}
			return hmat.Build(d, ds)
		},
		acpi.SigMSCT: func() (acpi.Table, error) {
			return msct.Build(d)
		},
	}
	for _, sig := range order {
		t, err := builders[sig]()
		if err != nil {
			log.Errorf("%s 没有生成: %v", sig, err)
			s.Errors[sig] = err.Error()
			continue
		}
		log.Infof("%s 长度 %#x", sig, len(t.Buf()))
		s.Tables = append(s.Tables, t)
	}
	if len(s.Tables) == 0 {
		return nil, errors.Errorf("没有生成任何表: %v", s.Errors)
	}
	return s, nil
}

// Distances 按描述文件选择的距离模型计算SLIT矩阵
func Distances(d *topology.Descriptor) (*slit.Matrix, error) {
	if d.DistanceModel == topology.DistanceMesh {
		return slit.BuildMesh(d)
	}
	return slit.Build(d, d.Interconnect())
}

// SocketHops 返回在位插槽两两之间的跳数
func SocketHops(d *topology.Descriptor) [][]int {
	ic := d.Interconnect()
	socks := d.PresentSockets()
	hops := make([][]int, len(socks))
	for i, a := range socks {
		hops[i] = lo.Map(socks, func(b int, _ int) int { return ic.Hops(a, b) })
	}
	return hops
}

// FromBuffers 解析每段缓冲区并组成Set，未注册的签名保留为Raw
func FromBuffers(bufs [][]byte) (*Set, error) {
	s := &Set{}
	for i, b := range bufs {
		t, err := acpi.ParseTable(b)
		if err != nil {
			return nil, errors.Wrapf(err, "第 %d 张表", i)
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

// Lookup 返回签名为sig的第一张表
func (s *Set) Lookup(sig string) (acpi.Table, bool) {
	return lo.Find(s.Tables, func(t acpi.Table) bool { return t.Signature() == sig })
}

// Signatures 返回集合中的签名
func (s *Set) Signatures() []string {
	return lo.Map(s.Tables, func(t acpi.Table, _ int) string { return t.Signature() })
}

// Failed 按字母顺序返回没能生成的表
func (s *Set) Failed() []string {
	keys := lo.Keys(s.Errors)
	sort.Strings(keys)
	return keys
}

// Signature 返回集合的伪签名
func (s *Set) Signature() string {
	return Signature
}

// Buf 集合本身没有缓冲区
func (s *Set) Buf() []byte {
	return nil
}

// SetBuf 忽略
func (s *Set) SetBuf([]byte) {}

// Apply 在Set上调用访问者
func (s *Set) Apply(v acpi.Visitor) error {
	return v.Visit(s)
}

// ApplyChildren 依次在每张表上调用访问者
func (s *Set) ApplyChildren(v acpi.Visitor) error {
	for _, t := range s.Tables {
		if err := t.Apply(v); err != nil {
			return err
		}
	}
	return nil
}

type tableJSON struct {
	Signature string
	Table     acpi.Table
}

// MarshalJSON 给每张表带上签名，方便从summary.json还原
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tables  []tableJSON
		Errors  map[string]string `json:",omitempty"`
		Domains *numa.Domains     `json:",omitempty"`
		Hops    [][]int           `json:",omitempty"`
	}{
		Tables: lo.Map(s.Tables, func(t acpi.Table, _ int) tableJSON {
			return tableJSON{Signature: t.Signature(), Table: t}
		}),
		Errors:  s.Errors,
		Domains: s.Domains,
		Hops:    s.Hops,
	})
}
