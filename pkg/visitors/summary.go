package visitors

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/msct"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/srat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// Spread 是一组取值的统计量
type Spread struct {
	Count  int
	Mean   float64
	Median float64
	Max    float64
}

func spreadOf(data stats.Float64Data) (Spread, error) {
	s := Spread{Count: data.Len()}
	if s.Count == 0 {
		return s, nil
	}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	s.Max, err = stats.Max(data)
	return s, err
}

func (s Spread) String() string {
	if s.Count == 0 {
		return "无数据"
	}
	return fmt.Sprintf("n=%d 平均 %.1f 中位 %.1f 最大 %.0f", s.Count, s.Mean, s.Median, s.Max)
}

// TableSummary 是一张表的摘要
type TableSummary struct {
	Signature   string
	Length      int
	Fingerprint uint64
	Lines       []string
}

// 汇总每张表的长度、指纹和矩阵统计
type Summary struct {
	W io.Writer

	// 输出
	Tables []TableSummary
	// Hops 来自构建时的插槽链路图，从目录或集合文件读入时为空
	Hops [][]int
}

// 包装Visit，最后把结果写到W
func (v *Summary) Run(t acpi.Table) error {
	v.Tables, v.Hops = nil, nil
	if err := t.Apply(v); err != nil {
		return err
	}
	if v.W == nil {
		return nil
	}
	for _, s := range v.Tables {
		fmt.Fprintf(v.W, "%-4s %8s  xxh64 %016x\n", s.Signature, humanize.IBytes(uint64(s.Length)), s.Fingerprint)
		for _, l := range s.Lines {
			fmt.Fprintf(v.W, "     %s\n", l)
		}
	}
	if len(v.Hops) > 0 {
		fmt.Fprintln(v.W, "插槽跳数:")
		for i, row := range v.Hops {
			fmt.Fprintf(v.W, "     [%d] %v\n", i, row)
		}
	}
	return nil
}

// 将Summary访问者应用于任何表类型
func (v *Summary) Visit(t acpi.Table) error {
	if s, ok := t.(*tables.Set); ok {
		v.Hops = s.Hops
		return s.ApplyChildren(v)
	}

	s := TableSummary{
		Signature:   t.Signature(),
		Length:      len(t.Buf()),
		Fingerprint: xxhash.Sum64(t.Buf()),
	}
	var err error
	switch t := t.(type) {
	case *slit.Table:
		s.Lines, err = summarizeSLIT(t)
	case *srat.Table:
		var total uint64
		for _, m := range t.Memory {
			if m.Flags&srat.MemoryEnabled != 0 {
				total += m.Size()
			}
		}
		s.Lines = append(s.Lines,
			fmt.Sprintf("处理器亲和 %d 个 (x2APIC %d 个)", len(t.APIC)+len(t.X2APIC), len(t.X2APIC)),
			fmt.Sprintf("内存亲和 %d 个，共 %s", len(t.Memory), humanize.IBytes(total)))
	case *hmat.Table:
		s.Lines, err = summarizeHMAT(t)
	case *msct.Table:
		s.Lines = append(s.Lines, fmt.Sprintf("最大邻近域 %d，最大物理地址 %#x",
			t.MsctHeader.MaxNumProxDom, t.MsctHeader.MaxPhysicalAddress))
	}
	if err != nil {
		return err
	}
	v.Tables = append(v.Tables, s)
	return t.ApplyChildren(v)
}

func summarizeSLIT(t *slit.Table) ([]string, error) {
	var off stats.Float64Data
	for i, row := range t.Distances {
		for j, d := range row {
			if i != j {
				off = append(off, float64(d))
			}
		}
	}
	sp, err := spreadOf(off)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("%d 个节点", t.Localities),
		fmt.Sprintf("非对角距离: %v", sp),
	}, nil
}

func summarizeHMAT(t *hmat.Table) ([]string, error) {
	var total uint64
	for _, m := range t.MSARS {
		total += m.AddrLength
	}
	lines := []string{fmt.Sprintf("MSARS %d 个，共 %s", len(t.MSARS), humanize.IBytes(total))}
	for i := range t.LBIS {
		l := &t.LBIS[i]
		data := make(stats.Float64Data, 0, len(l.Entries))
		for _, e := range l.Entries {
			data = append(data, float64(e))
		}
		sp, err := spreadOf(data)
		if err != nil {
			return nil, err
		}
		level := "内存"
		if l.Flags == hmat.HierarchyLastLevelMemory {
			level = "缓存"
		}
		lines = append(lines, fmt.Sprintf("LBIS %s %-14s %dx%d: %v", level, hmat.DataTypeName(l.DataType),
			l.InitiatorCount, l.TargetCount, sp))
	}
	for _, m := range t.MSCIS {
		lines = append(lines, fmt.Sprintf("MSCIS 内存域 %d: %s", m.MemoryProximityDomain, humanize.IBytes(m.MemorySideCacheSize)))
	}
	return lines, nil
}

func init() {
	RegisterCLI("summary", "汇总每张表的大小、指纹和距离统计", 0, func(args []string) (acpi.Visitor, error) {
		return &Summary{
			W: os.Stdout,
		}, nil
	})
}
