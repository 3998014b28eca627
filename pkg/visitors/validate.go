package visitors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// Problem 是一张表中发现的问题
type Problem struct {
	Signature string
	Msg       string
}

func (p Problem) String() string {
	return p.Signature + ": " + p.Msg
}

// 检查每张表的校验和、长度和可解析性，以及SLIT和HMAT自身的不变量
type Validate struct {
	W io.Writer

	// 输出
	Problems []Problem
}

// 包装Visit，有问题时返回错误
func (v *Validate) Run(t acpi.Table) error {
	v.Problems = nil
	if err := t.Apply(v); err != nil {
		return err
	}
	if len(v.Problems) == 0 {
		if v.W != nil {
			fmt.Fprintln(v.W, "全部表校验通过")
		}
		return nil
	}
	msgs := make([]string, len(v.Problems))
	for i, p := range v.Problems {
		msgs[i] = p.String()
	}
	return fmt.Errorf("校验发现 %d 个问题:\n%s", len(v.Problems), strings.Join(msgs, "\n"))
}

func (v *Validate) addf(sig string, format string, args ...interface{}) {
	v.Problems = append(v.Problems, Problem{Signature: sig, Msg: fmt.Sprintf(format, args...)})
}

// 将Validate访问者应用于任何表类型
func (v *Validate) Visit(t acpi.Table) error {
	if s, ok := t.(*tables.Set); ok {
		for _, sig := range s.Failed() {
			v.addf(sig, "没有生成: %s", s.Errors[sig])
		}
		return s.ApplyChildren(v)
	}

	sig := t.Signature()
	buf := t.Buf()
	// ParseHeader同时检查校验和
	h, err := acpi.ParseHeader(buf)
	if err != nil {
		v.addf(sig, "%v", err)
		return nil
	}
	if int(h.Length) != len(buf) {
		v.addf(sig, "头部长度 %#x，缓冲区 %#x 字节", h.Length, len(buf))
	}
	if _, err := acpi.ParseTable(buf); err != nil {
		v.addf(sig, "无法重新解析: %v", err)
	}

	switch t := t.(type) {
	case *slit.Table:
		v.checkSLIT(t)
	case *hmat.Table:
		if n := t.Length(); n != int(t.Header.Length) {
			v.addf(sig, "%v: 子结构共 %#x 字节，头部为 %#x", acpi.ErrLengthDrift, n, t.Header.Length)
		}
		for i := range t.LBIS {
			l := &t.LBIS[i]
			if int(l.InitiatorCount) != len(l.Initiators) || int(l.TargetCount) != len(l.Targets) {
				v.addf(sig, "LBIS[%d] 计数与列表长度不符", i)
			}
		}
	}
	return t.ApplyChildren(v)
}

// 对角线是每行的最小值，且矩阵中没有未填写的单元
func (v *Validate) checkSLIT(t *slit.Table) {
	for i, row := range t.Distances {
		for j, d := range row {
			if d == slit.Unset {
				v.addf(t.Signature(), "(%d,%d) 未填写", i, j)
			}
			if j != i && d < row[i] {
				v.addf(t.Signature(), "(%d,%d)=%d 小于自身距离 %d", i, j, d, row[i])
			}
		}
	}
}

func init() {
	RegisterCLI("validate", "校验每张表的校验和、长度和距离矩阵", 0, func(args []string) (acpi.Visitor, error) {
		return &Validate{
			W: os.Stdout,
		}, nil
	})
}
