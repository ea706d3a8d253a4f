package util

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// legacyEncodings 设备回显可能使用的非 UTF-8 编码（description 中常见）
var legacyEncodings = []encoding.Encoding{
	simplifiedchinese.GB18030,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// EnsureUTF8Bytes 非 UTF-8 字节按常见编码依次尝试解码，全部失败时原样返回
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	for _, enc := range legacyEncodings {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return string(b)
}

// EnsureUTF8 字符串版本
func EnsureUTF8(s string) string {
	return EnsureUTF8Bytes([]byte(s))
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}

// LineFilter 回显行过滤规则
type LineFilter struct {
	Prefixes        []string
	Contains        []string
	CaseInsensitive bool
}

// NormalizeOutput 规整设备回显：转为 UTF-8、统一换行为 \n、移除分页提示与退格控制符
func NormalizeOutput(raw []byte, filter LineFilter) string {
	s := EnsureUTF8Bytes(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = stripBackspaces(s)

	if len(filter.Prefixes) == 0 && len(filter.Contains) == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if !filter.drop(ln) {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func (f LineFilter) drop(line string) bool {
	cmp := strings.TrimSpace(line)
	if f.CaseInsensitive {
		cmp = strings.ToLower(cmp)
	}
	norm := func(p string) string {
		if f.CaseInsensitive {
			return strings.ToLower(p)
		}
		return p
	}
	for _, p := range f.Prefixes {
		if p != "" && strings.HasPrefix(cmp, norm(p)) {
			return true
		}
	}
	for _, c := range f.Contains {
		if c != "" && strings.Contains(cmp, norm(c)) {
			return true
		}
	}
	return false
}

// stripBackspaces 处理分页后设备回写的 "\b" 序列
func stripBackspaces(s string) string {
	if !strings.ContainsRune(s, '\b') {
		return s
	}
	var out []rune
	for _, r := range s {
		if r == '\b' {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
