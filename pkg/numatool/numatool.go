// Package numatool 是命令行的入口：读入描述文件、提取目录或集合文件，再依次执行访问者
package numatool

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinytoy-sec/NumaTableGen/pkg/bundle"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/tables"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
	"github.com/tinytoy-sec/NumaTableGen/pkg/visitors"
)

// Load 按路径的种类得到表集合
// 目录按extract的清单读回；.yaml/.yml是拓扑描述，现场构建；其余按集合文件解析
func Load(path string) (*tables.Set, error) {
	f, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if f.Mode().IsDir() {
		pd := visitors.ParseDir{BasePath: path}
		return pd.Parse()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		d, err := topology.Load(path)
		if err != nil {
			return nil, err
		}
		return tables.Build(d)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, entries, err := bundle.Read(image)
	if err != nil {
		return nil, err
	}
	bufs := make([][]byte, len(entries))
	for i, e := range entries {
		bufs[i] = e.Data
	}
	s, err := tables.FromBuffers(bufs)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if got := s.Tables[i].Signature(); got != e.Name {
			log.Warnf("集合中第 %d 项名为 %s，签名却是 %s", i, e.Name, got)
		}
	}
	return s, nil
}

func Run(args ...string) error {
	if len(args) == 0 {
		return errors.New("至少需要一个参数")
	}

	v, err := visitors.ParseCLI(args[1:])
	if err != nil {
		return err
	}

	s, err := Load(args[0])
	if err != nil {
		return err
	}
	return visitors.ExecuteCLI(s, v)
}
