package topology

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemType 是内存映射中一段区域的类型
type MemType int

// 支持的内存类型
const (
	MemType1lmDdr MemType = iota
	MemType2lmDdrCacheMemoryMode
	MemType1lmAppDirect
	MemType1lmAppDirectReserved
	MemTypeFpga
	MemTypeReserved
	MemTypeNxm
)

var memTypeNames = map[MemType]string{
	MemType1lmDdr:                "1lm-ddr",
	MemType2lmDdrCacheMemoryMode: "2lm-ddr-cache",
	MemType1lmAppDirect:          "1lm-appdirect",
	MemType1lmAppDirectReserved:  "1lm-appdirect-reserved",
	MemTypeFpga:                  "fpga",
	MemTypeReserved:              "reserved",
	MemTypeNxm:                   "nxm",
}

func (t MemType) String() string {
	if s, ok := memTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MemType(%d)", int(t))
}

// IsVolatile 判断是否为易失性内存(1LM DDR或2LM)
func (t MemType) IsVolatile() bool {
	return t == MemType1lmDdr || t == MemType2lmDdrCacheMemoryMode
}

// Is2LM 判断是否以DDR作为缓存
func (t MemType) Is2LM() bool {
	return t == MemType2lmDdrCacheMemoryMode
}

// IsReserved 判断区域是否应被所有表忽略
func (t MemType) IsReserved() bool {
	switch t {
	case MemType1lmAppDirectReserved, MemTypeReserved, MemTypeNxm:
		return true
	}
	return false
}

// IsAppDirect 判断是否为持久内存
func (t MemType) IsAppDirect() bool {
	return t == MemType1lmAppDirect || t == MemType1lmAppDirectReserved
}

// IsFpga 判断是否为FPGA内存
func (t MemType) IsFpga() bool {
	return t == MemTypeFpga
}

// MarshalText 输出类型名
func (t MemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText 按类型名解析
func (t *MemType) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for k, v := range memTypeNames {
		if v == name {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("未知的内存类型 '%s'", string(b))
}

// UnmarshalYAML 让描述文件中可以直接写类型名
func (t *MemType) UnmarshalYAML(n *yaml.Node) error {
	return t.UnmarshalText([]byte(n.Value))
}

// VolMemMode 是易失性内存模式
type VolMemMode int

// 易失性内存模式
const (
	VolMemMode1LM VolMemMode = iota
	VolMemMode2LM
	VolMemModeMix1LM2LM
)

var volMemModeNames = map[VolMemMode]string{
	VolMemMode1LM:       "1lm",
	VolMemMode2LM:       "2lm",
	VolMemModeMix1LM2LM: "mix",
}

func (m VolMemMode) String() string {
	if s, ok := volMemModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("VolMemMode(%d)", int(m))
}

// MarshalText 输出模式名
func (m VolMemMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 按模式名解析
func (m *VolMemMode) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for k, v := range volMemModeNames {
		if v == name {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("未知的易失性内存模式 '%s'，可选 1lm、2lm、mix", string(b))
}

// UnmarshalYAML 让描述文件中可以直接写模式名
func (m *VolMemMode) UnmarshalYAML(n *yaml.Node) error {
	return m.UnmarshalText([]byte(n.Value))
}

// DistanceModel 选择SLIT距离的计算方式
type DistanceModel string

// 距离模型
const (
	// DistanceHop 按插槽链路跳数计算
	DistanceHop DistanceModel = "hop"
	// DistanceMesh 按每插槽2x2网格坐标计算
	DistanceMesh DistanceModel = "mesh"
)
