package visitors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// 用于筛选Find访问者匹配项的谓词
type FindPredicate = func(t acpi.Table) bool

// 根据签名查找表
type Find struct {
	// 输入
	// 只有当此函数返回true时，表才会出现在`Matches`切片中
	Predicate FindPredicate

	// 输出
	Matches []acpi.Table

	// JSON写入此writer
	W io.Writer
}

// 包装Visit并执行一些设置和清理任务
func (v *Find) Run(t acpi.Table) error {
	if err := t.Apply(v); err != nil {
		return err
	}
	if v.W != nil {
		b, err := json.MarshalIndent(v.Matches, "", "\t")
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Fprintln(v.W, string(b))
	}
	return nil
}

// 将Find访问者应用于任何表类型
func (v *Find) Visit(t acpi.Table) error {
	switch t := t.(type) {
	case *tables.Set:
		// 集合本身不参与匹配
		return t.ApplyChildren(v)

	default:
		if v.Predicate(t) {
			v.Matches = append(v.Matches, t)
		}
		return t.ApplyChildren(v)
	}
}

// 按签名精确查找的通用谓词
func FindSignaturePredicate(sig string) FindPredicate {
	return func(t acpi.Table) bool {
		return t.Signature() == sig
	}
}

// 按签名正则查找的通用谓词，不区分大小写
func FindTablePredicate(r string) (FindPredicate, error) {
	ciRE, err := regexp.Compile("^(?i)(" + r + ")$")
	if err != nil {
		return nil, err
	}
	return func(t acpi.Table) bool {
		return ciRE.MatchString(t.Signature())
	}, nil
}

// 对现有谓词取逻辑非的通用谓词
func FindNotPredicate(predicate FindPredicate) FindPredicate {
	return func(t acpi.Table) bool {
		return !predicate(t)
	}
}

// 对两个现有谓词取逻辑与的通用谓词
func FindAndPredicate(predicate1 FindPredicate, predicate2 FindPredicate) FindPredicate {
	return func(t acpi.Table) bool {
		return predicate1(t) && predicate2(t)
	}
}

// 使用提供的谓词进行查找，如果不是恰好一个结果则报错
func FindExactlyOne(t acpi.Table, pred FindPredicate) (acpi.Table, error) {
	find := &Find{
		Predicate: pred,
	}
	if err := find.Run(t); err != nil {
		return nil, err
	}
	if mlen := len(find.Matches); mlen != 1 {
		return nil, fmt.Errorf("期望恰好一个匹配项，得到 %v，匹配项为：%v", mlen, find.Matches)
	}
	return find.Matches[0], nil
}

func init() {
	RegisterCLI("find", "按签名(正则)查找表", 1, func(args []string) (acpi.Visitor, error) {
		pred, err := FindTablePredicate(args[0])
		if err != nil {
			return nil, err
		}
		return &Find{
			Predicate: pred,
			W:         os.Stdout,
		}, nil
	})
}
