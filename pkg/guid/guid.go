package guid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
)

const (
	// Size 是GUID的字节数
	Size = 16
	// UExample 是字符串形式的示例
	UExample = "01234567-89AB-CDEF-0123-456789ABCDEF"
)

// 前三个字段按小端存储，其余按字节顺序
var fields = [...]int{4, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1}

// GUID 是EFI格式(混合字节序)的唯一标识符
type GUID [Size]byte

// Zero 是全零GUID，表示“未压缩”
var Zero GUID

func swapFields(u *GUID) {
	i := 0
	for _, n := range fields {
		for a, b := i, i+n-1; a < b; a, b = a+1, b-1 {
			u[a], u[b] = u[b], u[a]
		}
		i += n
	}
}

// Parse 解析 8-4-4-4-12 形式的GUID字符串
func Parse(s string) (*GUID, error) {
	decoded, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil || len(decoded) != Size {
		return nil, fmt.Errorf("GUID格式不正确，需要 %v，得到 %q", UExample, s)
	}
	var u GUID
	copy(u[:], decoded)
	swapFields(&u)
	return &u, nil
}

// MustParse 解析GUID字符串，失败时直接退出
func MustParse(s string) *GUID {
	u, err := Parse(s)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return u
}

// IsZero 判断是否为全零GUID
func (u GUID) IsZero() bool {
	return u == Zero
}

func (u GUID) String() string {
	swapFields(&u)
	h := strings.ToUpper(hex.EncodeToString(u[:]))
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:]
}

// MarshalText 让GUID在JSON/YAML中以字符串出现
func (u GUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText 与MarshalText对应
func (u *GUID) UnmarshalText(b []byte) error {
	g, err := Parse(string(b))
	if err != nil {
		return err
	}
	*u = *g
	return nil
}
