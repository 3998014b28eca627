package visitors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/msct"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/srat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

var (
	force  = pflag.Bool("force", false, "强制提取到非空目录")
	remove = pflag.Bool("remove", false, "提取前删除现有目录")
)

// SummaryFile 是extract写出、ParseDir读入的清单
const SummaryFile = "summary.json"

// Manifest 是summary.json的内容
type Manifest struct {
	Tables []ManifestEntry
	Errors map[string]string `json:",omitempty"`
}

// ManifestEntry 记录一张表和它的文件
type ManifestEntry struct {
	Signature   string
	ExtractPath string
}

// 将表集合中的每张表提取到BasePath
type Extract struct {
	BasePath string
	Index    *uint64

	manifest Manifest
}

// 将二进制文件简单地转储到BasePath下
// 返回相对于BasePath的文件名
func (v *Extract) extractBinary(buf []byte, filename string) (string, error) {
	fp := filepath.Join(v.BasePath, filename)
	if err := os.WriteFile(fp, buf, 0666); err != nil {
		// 确保返回""，因为我们不希望无效路径被序列化出去
		return "", err
	}
	return filename, nil
}

// 包装Visit并执行一些设置和清理任务
func (v *Extract) Run(t acpi.Table) error {
	// 如果目录已存在，可选择删除
	if *remove {
		if err := os.RemoveAll(v.BasePath); err != nil {
			return err
		}
	}

	if !*force {
		// 检查目录是否不存在或为空
		files, err := os.ReadDir(v.BasePath)
		if err == nil {
			if len(files) != 0 {
				return errors.New("现有目录非空，使用--force覆盖")
			}
		} else if !os.IsNotExist(err) {
			// 错误不是EEXIST，我们不知道出了什么问题
			return err
		}
	}

	if err := os.MkdirAll(v.BasePath, 0755); err != nil {
		return err
	}

	// 重置索引
	*v.Index = 0
	v.manifest = Manifest{}
	if err := t.Apply(v); err != nil {
		return err
	}

	b, err := json.MarshalIndent(v.manifest, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(v.BasePath, SummaryFile), b, 0666)
}

// 将Extract访问者应用于任何表类型
func (v *Extract) Visit(t acpi.Table) error {
	if s, ok := t.(*tables.Set); ok {
		v.manifest.Errors = s.Errors
		return s.ApplyChildren(v)
	}

	// 序号保证同签名的表文件名不冲突
	name := fmt.Sprintf("%02d_%s.aml", *v.Index, strings.ToLower(strings.TrimSpace(t.Signature())))
	*v.Index++
	path, err := v.extractBinary(t.Buf(), name)
	if err != nil {
		return err
	}

	switch t := t.(type) {
	case *slit.Table:
		t.ExtractPath = path
	case *srat.Table:
		t.ExtractPath = path
	case *hmat.Table:
		t.ExtractPath = path
	case *msct.Table:
		t.ExtractPath = path
	case *acpi.Raw:
		t.ExtractPath = path
	}
	v.manifest.Tables = append(v.manifest.Tables, ManifestEntry{Signature: t.Signature(), ExtractPath: path})
	return t.ApplyChildren(v)
}

func init() {
	var fileIndex uint64
	RegisterCLI("extract", "将每张表提取到目录", 1, func(args []string) (acpi.Visitor, error) {
		return &Extract{
			BasePath: args[0],
			Index:    &fileIndex,
		}, nil
	})
}
