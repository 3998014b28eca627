package visitors

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// 以固件调试输出的格式打印每张表
type Print struct {
	W io.Writer
}

// 只是调用访问者
func (v *Print) Run(t acpi.Table) error {
	return t.Apply(v)
}

// 将Print访问者应用于任何表类型
func (v *Print) Visit(t acpi.Table) error {
	switch t := t.(type) {
	case *tables.Set:
		for _, sig := range t.Failed() {
			fmt.Fprintf(v.W, "%s 没有生成: %s\n", sig, t.Errors[sig])
		}
		return t.ApplyChildren(v)

	case *hmat.Table:
		fmt.Fprint(v.W, t)
		// 固件输出只有十六进制，这里补上可读的大小
		for i, m := range t.MSARS {
			fmt.Fprintf(v.W, "MSARS[%d] 内存域 %d: %s @ %#x\n", i, m.MemoryProximityDomain, humanize.IBytes(m.AddrLength), m.AddrBase)
		}
		for _, m := range t.MSCIS {
			fmt.Fprintf(v.W, "MSCIS 内存域 %d: 内存侧缓存 %s，%d 个SMBIOS句柄\n",
				m.MemoryProximityDomain, humanize.IBytes(m.MemorySideCacheSize), m.NumSmbiosHandles)
		}

	case fmt.Stringer:
		fmt.Fprint(v.W, t)

	default:
		fmt.Fprintf(v.W, "%s: %d 字节 (无法解析内容)\n", t.Signature(), len(t.Buf()))
	}
	return t.ApplyChildren(v)
}

func init() {
	RegisterCLI("print", "以固件调试格式打印每张表", 0, func(args []string) (acpi.Visitor, error) {
		return &Print{
			W: os.Stdout,
		}, nil
	})
}
