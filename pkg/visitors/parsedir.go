package visitors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/msct"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/srat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
)

// 从extract产生的目录重建表集合
type ParseDir struct {
	BasePath string
}

// 实际上未实现，因为无法符合接口
func (v *ParseDir) Run(t acpi.Table) error {
	return errors.New("ParseDir的Run函数未实现，请勿使用")
}

// 读取清单和每张表的文件，解析后组成集合
func (v *ParseDir) Parse() (*tables.Set, error) {
	jsonbuf, err := os.ReadFile(filepath.Join(v.BasePath, SummaryFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(jsonbuf, &m); err != nil {
		return nil, err
	}

	bufs := make([][]byte, 0, len(m.Tables))
	for _, e := range m.Tables {
		buf, err := v.readBuf(e.ExtractPath)
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, buf)
	}
	s, err := tables.FromBuffers(bufs)
	if err != nil {
		return nil, err
	}
	s.Errors = m.Errors

	for i, e := range m.Tables {
		if got := s.Tables[i].Signature(); got != e.Signature {
			return nil, fmt.Errorf("%s 的签名是 %s，清单中为 %s", e.ExtractPath, got, e.Signature)
		}
	}
	if err = s.Apply(&restorePaths{paths: m.Tables}); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *ParseDir) readBuf(extractPath string) ([]byte, error) {
	if extractPath == "" {
		return nil, errors.New("清单中的表没有文件路径")
	}
	return os.ReadFile(filepath.Join(v.BasePath, extractPath))
}

// restorePaths 把清单中的路径写回每张表
type restorePaths struct {
	paths []ManifestEntry
	i     int
}

func (v *restorePaths) Run(t acpi.Table) error {
	return t.Apply(v)
}

func (v *restorePaths) Visit(t acpi.Table) error {
	if _, ok := t.(*tables.Set); ok {
		return t.ApplyChildren(v)
	}
	if v.i >= len(v.paths) {
		return nil
	}
	path := v.paths[v.i].ExtractPath
	v.i++
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
	return t.ApplyChildren(v)
}
