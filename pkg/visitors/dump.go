package visitors

import (
	"io"
	"os"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

// 使用签名导出一张表的原始字节
type Dump struct {
	// 输入
	Predicate FindPredicate

	// 输出
	// 表将写入此writer
	W io.Writer
}

// 只是调用访问者
func (v *Dump) Run(t acpi.Table) error {
	return t.Apply(v)
}

// 使用find将表导出到W
func (v *Dump) Visit(t acpi.Table) error {
	// 必须只有一个匹配项
	m, err := FindExactlyOne(t, v.Predicate)
	if err != nil {
		return err
	}
	_, err = v.W.Write(m.Buf())
	return err
}

func init() {
	RegisterCLI("dump", "导出一张表", 2, func(args []string) (acpi.Visitor, error) {
		pred, err := FindTablePredicate(args[0])
		if err != nil {
			return nil, err
		}

		file, err := os.OpenFile(args[1], os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}

		return &Dump{
			Predicate: pred,
			W:         file,
		}, nil
	})
}
