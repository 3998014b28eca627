package main

import (
	goflag "flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/numatool"
	"github.com/tinytoy-sec/NumaTableGen/pkg/visitors"
)

// 配置结构
type config struct {
	LogFormat string
}

func newRootCommand() *cobra.Command {
	var cfg config
	cmd := &cobra.Command{
		Use:   "numatool [标志] <描述文件.yaml|提取目录|集合文件> [0个或多个操作]",
		Short: "生成并检查SRAT、SLIT、HMAT和MSCT",
		// 操作及其参数都是位置参数，不能被当作标志解析
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetFormat(cfg.LogFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "help" {
				return cmd.Help()
			}
			return numatool.Run(args...)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", "text", "日志格式: text或json")

	// 各包用pflag注册的标志(--xz-path、--force、--remove、--compression)
	cmd.Flags().AddFlagSet(pflag.CommandLine)
	// klog的标志，包括 --v
	gofs := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(gofs)
	cmd.Flags().AddGoFlagSet(gofs)

	cmd.SetUsageTemplate(cmd.UsageTemplate() + fmt.Sprintf("\n操作:\n%s", visitors.ListCLI()))
	return cmd
}

func main() {
	defer klog.Flush()
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
