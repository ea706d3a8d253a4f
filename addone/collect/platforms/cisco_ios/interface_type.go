package cisco_ios

import (
	"strings"
)

// UnknownInterfaceType 无法识别的接口类型
const UnknownInterfaceType = "unknown"

// interfaceTypes 接口缩写前缀 -> 规范类型名，按顺序匹配（长前缀在前）
var interfaceTypes = []struct {
	prefix string
	kind   string
}{
	{"hu", "HundredGigE"},
	{"fo", "FortyGigabitEthernet"},
	{"twe", "TwentyFiveGigE"},
	{"two", "TwoGigabitEthernet"},
	{"tw", "TwentyFiveGigE"},
	{"te", "TenGigabitEthernet"},
	{"gi", "GigabitEthernet"},
	{"fa", "FastEthernet"},
	{"et", "Ethernet"},
	{"po", "Port-channel"},
	{"vl", "Vlan"},
	{"long", "LongReachEthernet"},
	{"lo", "Loopback"},
	{"nv", "nve"},
}

// l2Prefixes 可承载二层 switchport 配置的接口前缀
var l2Prefixes = map[string]struct{}{
	"HU": {}, "FO": {}, "TW": {}, "TE": {}, "GI": {}, "FA": {}, "ET": {}, "PO": {},
}

// GetInterfaceType 返回接口名对应的规范类型，无法识别时返回 UnknownInterfaceType
func GetInterfaceType(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return UnknownInterfaceType
	}
	for _, t := range interfaceTypes {
		if strings.HasPrefix(lower, t.prefix) {
			return t.kind
		}
	}
	return UnknownInterfaceType
}

// IsL2Interface 判断接口是否为以太网族或聚合口（大小写不敏感的两字母前缀）
func IsL2Interface(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return false
	}
	_, ok := l2Prefixes[strings.ToUpper(name[:2])]
	return ok
}

// NormalizeInterface 将缩写接口名展开为规范形式，例如 Gi0/1 -> GigabitEthernet0/1
// 支持 "GigabitEthernet 0/1" 这种类型与编号分开的写法；无法识别的类型原样返回
func NormalizeInterface(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	kind := GetInterfaceType(name)
	if kind == UnknownInterfaceType {
		return name
	}

	var number string
	if parts := strings.Split(name, " "); len(parts) == 2 {
		number = strings.TrimSpace(parts[1])
	} else {
		number = interfaceNumber(name)
	}
	return kind + number
}

// interfaceNumber 提取接口编号部分（数字、"/" 与子接口 "."）
func interfaceNumber(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= '0' && r <= '9') || r == '/' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
