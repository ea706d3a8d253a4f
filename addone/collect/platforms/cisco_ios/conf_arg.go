package cisco_ios

import (
	"strings"
)

// stanzaDelimiter 接口配置段起始标记
const stanzaDelimiter = "interface "

// SplitConfig 将多接口配置按 "interface " 行切分为单接口配置块
// 每块首行为接口名（及其后缀关键字），分隔标记本身被丢弃；空块丢弃，顺序保持
func SplitConfig(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	data = strings.TrimSuffix(data, "\n")

	blocks := make([]string, 0)
	var cur strings.Builder
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			blocks = append(blocks, cur.String())
		}
		cur.Reset()
	}
	for _, ln := range strings.Split(data, "\n") {
		if strings.HasPrefix(ln, stanzaDelimiter) {
			flush()
			ln = strings.TrimPrefix(ln, stanzaDelimiter)
		}
		cur.WriteString(ln)
		cur.WriteString("\n")
	}
	flush()
	return blocks
}

// ParseConfArg 在配置块中查找包含指令的首行，返回指令之后的值（去除首尾空白）
// 指令须位于行首或前接空白，例如 "native vlan" 可匹配 "switchport trunk native vlan 5"
// 多行匹配时只取第一行
func ParseConfArg(block, directive string) (string, bool) {
	key := directive + " "
	for _, ln := range strings.Split(block, "\n") {
		idx := directiveIndex(ln, key)
		if idx < 0 {
			continue
		}
		val := strings.TrimSpace(ln[idx+len(key):])
		return val, val != ""
	}
	return "", false
}

func directiveIndex(line, key string) int {
	offset := 0
	for {
		i := strings.Index(line[offset:], key)
		if i < 0 {
			return -1
		}
		pos := offset + i
		if pos == 0 || line[pos-1] == ' ' || line[pos-1] == '\t' {
			return pos
		}
		offset = pos + 1
	}
}

// headerToken 返回配置块首行的第一个字段；首字符为空白时视为无接口名
func headerToken(block string) string {
	first := block
	if i := strings.IndexByte(block, '\n'); i >= 0 {
		first = block[:i]
	}
	if first == "" || first[0] == ' ' || first[0] == '\t' {
		return ""
	}
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// hasSwitchport 配置块中是否存在 switchport 行
func hasSwitchport(block string) bool {
	for _, ln := range strings.Split(block, "\n") {
		if strings.HasPrefix(strings.TrimSpace(ln), "switchport") {
			return true
		}
	}
	return false
}
