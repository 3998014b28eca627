package log

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"k8s.io/klog/v2"
)

// Logger 是各个表构建器使用的日志接口
type Logger interface {
	Infof(format string, args ...interface{})

	Debugf(format string, args ...interface{})

	Warnf(format string, args ...interface{})

	Errorf(format string, args ...interface{})

	Fatalf(format string, args ...interface{})
}

var DefaultLogger Logger

func init() {
	DefaultLogger = klogWrapper{}
}

// debug 级别对应的 klog 详细程度
const debugLevel klog.Level = 4

// klogWrapper 把输出交给 klog，调用栈深度跳过本包
type klogWrapper struct{}

func (klogWrapper) Infof(format string, args ...interface{}) {
	klog.InfoDepth(2, fmt.Sprintf(format, args...))
}

func (klogWrapper) Debugf(format string, args ...interface{}) {
	if klog.V(debugLevel).Enabled() {
		klog.InfoDepth(2, fmt.Sprintf(format, args...))
	}
}

func (klogWrapper) Warnf(format string, args ...interface{}) {
	klog.WarningDepth(2, fmt.Sprintf(format, args...))
}

func (klogWrapper) Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(2, fmt.Sprintf(format, args...))
}

func (klogWrapper) Fatalf(format string, args ...interface{}) {
	klog.FatalDepth(2, fmt.Sprintf(format, args...))
}

// zerologWrapper 输出 JSON 行，供 --log-format=json 使用
type zerologWrapper struct {
	logger zerolog.Logger
}

// NewZerolog 返回写入 w 的结构化日志器
func NewZerolog(w io.Writer) Logger {
	return zerologWrapper{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (z zerologWrapper) Infof(format string, args ...interface{}) {
	z.logger.Info().Msgf(format, args...)
}

// Debugf 与klog后端一样受 --v 控制
func (z zerologWrapper) Debugf(format string, args ...interface{}) {
	if klog.V(debugLevel).Enabled() {
		z.logger.Debug().Msgf(format, args...)
	}
}

func (z zerologWrapper) Warnf(format string, args ...interface{}) {
	z.logger.Warn().Msgf(format, args...)
}

func (z zerologWrapper) Errorf(format string, args ...interface{}) {
	z.logger.Error().Msgf(format, args...)
}

func (z zerologWrapper) Fatalf(format string, args ...interface{}) {
	z.logger.Error().Msgf(format, args...)
	os.Exit(1)
}

// SetFormat 按名称切换默认日志器，支持 "text" 和 "json"
func SetFormat(format string) error {
	switch format {
	case "", "text":
		DefaultLogger = klogWrapper{}
	case "json":
		DefaultLogger = NewZerolog(os.Stderr)
	default:
		return fmt.Errorf("未知的日志格式 '%s'", format)
	}
	return nil
}

func Infof(format string, args ...interface{}) {
	DefaultLogger.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	DefaultLogger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	DefaultLogger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	DefaultLogger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	DefaultLogger.Fatalf(format, args...)
}
