package unicode

import (
	stdunicode "unicode"

	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// 从以空字符结尾的UCS2转换为UTF8
func UCS2ToUTF8(input []byte) string {
	e := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	output, _, err := transform.Bytes(e.NewDecoder(), input)
	if err != nil {
		log.Errorf("无法解码UCS2: %v", err)
		return string(input)
	}
	for len(output) > 0 && output[len(output)-1] == 0 {
		output = output[:len(output)-1]
	}
	return string(output)
}

// 从UTF8转换为带空终止符的UCS2
func UTF8ToUCS2(input string) []byte {
	e := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	output, _, err := transform.Bytes(e.NewEncoder(), []byte(input+"\000"))
	if err != nil {
		log.Errorf("无法编码UCS2: %v", err)
		return []byte(input)
	}
	return output
}

var nonPrintableASCII = runes.Predicate(func(r rune) bool {
	return r > stdunicode.MaxASCII || !stdunicode.IsPrint(r)
})

// ASCIIField 去掉非ASCII字符后按n字节右补空格，用于ACPI头中的OEM字段
func ASCIIField(s string, n int) []byte {
	clean, _, err := transform.String(runes.Remove(nonPrintableASCII), s)
	if err != nil {
		log.Warnf("OEM字段 %q 无法清理: %v", s, err)
		clean = ""
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, clean)
	return out
}
