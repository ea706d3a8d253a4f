package cisco_ios

import (
	"encoding/json"
	"fmt"
	"strings"
)

// allVLANs 放行全部 VLAN 的哨兵值
const allVLANs = "all"

// AccessConfig access 口属性
type AccessConfig struct {
	VLAN int `json:"vlan"`
}

// AllowedVLANs trunk 放行 VLAN：All=true 表示不限制，否则为按原顺序保存的 VLAN 片段
type AllowedVLANs struct {
	All   bool
	VLANs []string
}

// AllowAll 返回不限制的放行列表
func AllowAll() *AllowedVLANs { return &AllowedVLANs{All: true} }

// Value 返回 schema 形式：字符串 "all" 或 []string
func (a *AllowedVLANs) Value() interface{} {
	if a.All {
		return allVLANs
	}
	return a.VLANs
}

// String 按逗号重新拼接
func (a *AllowedVLANs) String() string {
	if a.All {
		return allVLANs
	}
	return strings.Join(a.VLANs, ",")
}

func (a AllowedVLANs) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

func (a *AllowedVLANs) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != allVLANs {
			return fmt.Errorf("allowed_vlans: unexpected value %q", s)
		}
		*a = AllowedVLANs{All: true}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("allowed_vlans: %w", err)
	}
	*a = AllowedVLANs{VLANs: list}
	return nil
}

// TrunkConfig trunk 口属性，未配置的字段为空值
type TrunkConfig struct {
	Encapsulation string        `json:"encapsulation,omitempty"`
	NativeVLAN    *int          `json:"native_vlan,omitempty"`
	AllowedVLANs  *AllowedVLANs `json:"allowed_vlans,omitempty"`
	PruningVLANs  []string      `json:"pruning_vlans,omitempty"`
}

// IsEmpty 所有字段均未配置
func (t *TrunkConfig) IsEmpty() bool {
	return t == nil || (t.Encapsulation == "" && t.NativeVLAN == nil && t.AllowedVLANs == nil && len(t.PruningVLANs) == 0)
}

// L2Interface 单个接口的二层事实
type L2Interface struct {
	Name   string        `json:"name"`
	Access *AccessConfig `json:"access,omitempty"`
	Trunk  *TrunkConfig  `json:"trunk,omitempty"`
}

// ToMap 转换为与参数规格对应的 map，供校验与裁剪使用
func (i *L2Interface) ToMap() map[string]interface{} {
	m := map[string]interface{}{"name": i.Name}
	if i.Access != nil {
		m["access"] = map[string]interface{}{"vlan": i.Access.VLAN}
	}
	if t := i.Trunk; !t.IsEmpty() {
		tm := make(map[string]interface{})
		if t.Encapsulation != "" {
			tm["encapsulation"] = t.Encapsulation
		}
		if t.NativeVLAN != nil {
			tm["native_vlan"] = *t.NativeVLAN
		}
		if t.AllowedVLANs != nil {
			tm["allowed_vlans"] = t.AllowedVLANs.Value()
		}
		if len(t.PruningVLANs) > 0 {
			tm["pruning_vlans"] = t.PruningVLANs
		}
		m["trunk"] = tm
	}
	return m
}

// splitVLANList 按逗号切分 VLAN 列表，保留顺序并去除各片段两侧空白
func splitVLANList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
