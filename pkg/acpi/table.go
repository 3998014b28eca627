package acpi

import (
	"fmt"
	"sort"
)

// Table 是一张已序列化的ACPI表，也是访问者遍历的节点
type Table interface {
	Signature() string
	Buf() []byte
	SetBuf([]byte)
	Apply(Visitor) error
	ApplyChildren(Visitor) error
}

// Visitor 定义遍历表集合的方法
type Visitor interface {
	Run(Table) error
	Visit(Table) error
}

// ParseFunc 把一张完整的表解析为具体类型
type ParseFunc func(buf []byte) (Table, error)

var parsers = map[string]ParseFunc{}

// RegisterParser 为签名注册解析函数，各表的包在init中调用
func RegisterParser(sig string, fn ParseFunc) {
	if _, ok := parsers[sig]; ok {
		panic(fmt.Sprintf("签名 '%s' 被注册了两次", sig))
	}
	parsers[sig] = fn
}

// Parsers 返回已注册的签名，按字母排序
func Parsers() []string {
	var sigs []string
	for s := range parsers {
		sigs = append(sigs, s)
	}
	sort.Strings(sigs)
	return sigs
}

// ParseTable 检查表头后按签名分派到注册的解析函数
// 未注册的签名作为Raw返回
func ParseTable(buf []byte) (Table, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:h.Length]
	if fn, ok := parsers[h.SignatureString()]; ok {
		return fn(buf)
	}
	return &Raw{Header: *h, buf: buf}, nil
}

// Raw 是不认识的表，只保留头部和原始字节
type Raw struct {
	Header Header
	buf    []byte

	ExtractPath string `json:",omitempty"`
}

// Signature 返回表签名
func (r *Raw) Signature() string {
	return r.Header.SignatureString()
}

// Buf 返回缓冲区
func (r *Raw) Buf() []byte {
	return r.buf
}

// SetBuf 设置缓冲区
func (r *Raw) SetBuf(buf []byte) {
	r.buf = buf
}

// Apply 在Raw上调用访问者
func (r *Raw) Apply(v Visitor) error {
	return v.Visit(r)
}

// ApplyChildren Raw没有子节点
func (r *Raw) ApplyChildren(v Visitor) error {
	return nil
}
