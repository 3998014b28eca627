package acpi

import "github.com/pkg/errors"

// 构建和解析表时使用的哨兵错误，调用方用errors.Cause判断类别
var (
	// ErrCapacity 表示平台配置超出了表的固定容量
	ErrCapacity = errors.New("配置超出容量")
	// ErrUnavailable 表示协作方(SMBIOS目录、互联信息等)不可用
	ErrUnavailable = errors.New("协作方不可用")
	// ErrLengthDrift 表示头部Length与实际写出的字节数不一致
	ErrLengthDrift = errors.New("表长度计算不一致")
	// ErrBadChecksum 表示表的校验和不为零
	ErrBadChecksum = errors.New("校验和错误")
	// ErrTruncated 表示缓冲区比声明的长度短
	ErrTruncated = errors.New("表被截断")
)

// IsCapacity 判断err是否由容量超限引起
func IsCapacity(err error) bool {
	return errors.Cause(err) == ErrCapacity
}
