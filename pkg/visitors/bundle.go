package visitors

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/bundle"
	"github.com/tinytoy-sec/NumaTableGen/pkg/compression"
	"github.com/tinytoy-sec/NumaTableGen/pkg/guid"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

var compressionName = pflag.String("compression", "none", "bundle使用的压缩方式: none、lzma或xz")

// 把表集合写成一个集合文件
type Bundle struct {
	Path        string
	Compression guid.GUID

	entries []bundle.Entry
}

// 收集全部表后一次写出
func (v *Bundle) Run(t acpi.Table) error {
	v.entries = nil
	if err := t.Apply(v); err != nil {
		return err
	}
	f, err := os.OpenFile(v.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := bundle.Write(f, v.entries, v.Compression); err != nil {
		return err
	}
	log.Infof("已写出 %s: %d 张表", v.Path, len(v.entries))
	return f.Close()
}

// 将Bundle访问者应用于任何表类型
func (v *Bundle) Visit(t acpi.Table) error {
	if s, ok := t.(*tables.Set); ok {
		return s.ApplyChildren(v)
	}
	v.entries = append(v.entries, bundle.NewEntry(t.Signature(), t.Buf()))
	return t.ApplyChildren(v)
}

func init() {
	RegisterCLI("bundle", "把全部表写成一个集合文件", 1, func(args []string) (acpi.Visitor, error) {
		g, err := compression.GUIDFromName(*compressionName)
		if err != nil {
			return nil, err
		}
		return &Bundle{
			Path:        args[0],
			Compression: g,
		}, nil
	})
}
