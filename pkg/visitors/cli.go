package visitors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
)

// verb 是命令行上的一个操作
type verb struct {
	name    string
	help    string
	numArgs int
	create  func([]string) (acpi.Visitor, error)
}

var verbs = map[string]verb{}

const helpMessage = "用法: numatool 文件 [命令 [参数]]..."

// 注册一个操作，ParseCLI遇到name时取其后numArgs个参数调用create
// 每个访问者在自己文件的init中注册
func RegisterCLI(name string, help string, numArgs int, create func([]string) (acpi.Visitor, error)) {
	if _, ok := verbs[name]; ok {
		panic(fmt.Sprintf("两个访问者注册了相同的名称: '%s'", name))
	}
	verbs[name] = verb{name: name, help: help, numArgs: numArgs, create: create}
}

// Verbs 按字母顺序返回已注册的操作名
func Verbs() []string {
	names := lo.Keys(verbs)
	sort.Strings(names)
	return names
}

// 把命令行参数切分为一串访问者，每个操作消耗固定数量的参数
func ParseCLI(args []string) ([]acpi.Visitor, error) {
	var out []acpi.Visitor
	for len(args) > 0 {
		vb, ok := verbs[args[0]]
		if !ok {
			return nil, fmt.Errorf("找不到命令 '%s'\n%s", args[0], helpMessage)
		}
		args = args[1:]
		if len(args) < vb.numArgs {
			return nil, fmt.Errorf("命令 '%s' 需要 %d 个参数，只有 %d 个 (%s)", vb.name, vb.numArgs, len(args), vb.help)
		}
		v, err := vb.create(args[:vb.numArgs])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", vb.name, err)
		}
		out = append(out, v)
		args = args[vb.numArgs:]
	}
	return out, nil
}

// 按顺序在表集合上运行每个访问者，遇到第一个错误即停止
func ExecuteCLI(t acpi.Table, v []acpi.Visitor) error {
	for _, vis := range v {
		log.Debugf("运行 %T", vis)
		if err := vis.Run(t); err != nil {
			return err
		}
	}
	return nil
}

// 每行一个操作，格式为
//
//	名称 <参数个数>: 帮助
func ListCLI() string {
	var b strings.Builder
	for _, n := range Verbs() {
		vb := verbs[n]
		name := n
		if vb.numArgs > 0 {
			name += strings.Repeat(" <参数>", vb.numArgs)
		}
		fmt.Fprintf(&b, "  %-22s: %s\n", name, vb.help)
	}
	return b.String()
}
