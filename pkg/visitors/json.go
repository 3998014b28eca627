package visitors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// 把根节点序列化为JSON写到W
// 表集合自带每张表的签名，单张表外面补上一层签名
type JSON struct {
	W io.Writer
	// Indent 为空时输出紧凑格式
	Indent string
}

func (v *JSON) Run(t acpi.Table) error {
	return t.Apply(v)
}

func (v *JSON) Visit(t acpi.Table) error {
	var node interface{} = t
	if _, ok := t.(*tables.Set); !ok {
		node = struct {
			Signature string
			Table     acpi.Table
		}{t.Signature(), t}
	}
	var (
		b   []byte
		err error
	)
	if v.Indent == "" {
		b, err = json.Marshal(node)
	} else {
		b, err = json.MarshalIndent(node, "", v.Indent)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(v.W, string(b))
	return err
}

func init() {
	RegisterCLI("json", "为整个表集合生成JSON", 0, func(args []string) (acpi.Visitor, error) {
		return &JSON{W: os.Stdout, Indent: "\t"}, nil
	})
}
