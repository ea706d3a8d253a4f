package cisco_ios

import (
	"github.com/sshcollectorpro/l2collector/pkg/facts"
)

// L2InterfacesArgSpec l2_interfaces 资源参数规格，包初始化时构造，之后只读
var L2InterfacesArgSpec = facts.ArgSpec{
	"config": {
		Type:     facts.TypeList,
		Elements: facts.TypeDict,
		Options: facts.ArgSpec{
			"name": {Type: facts.TypeStr, Required: true},
			"access": {
				Type: facts.TypeDict,
				Options: facts.ArgSpec{
					"vlan": {Type: facts.TypeInt},
				},
			},
			"trunk": {
				Type: facts.TypeDict,
				Options: facts.ArgSpec{
					// "all" 或 VLAN 片段列表
					"allowed_vlans": {Type: facts.TypeRaw},
					"encapsulation": {Type: facts.TypeStr, Choices: []string{"dot1q", "isl", "negotiate"}},
					"native_vlan":   {Type: facts.TypeInt},
					"pruning_vlans": {Type: facts.TypeList, Elements: facts.TypeStr},
				},
			},
		},
	},
	"state": {
		Type:    facts.TypeStr,
		Default: "merged",
		Choices: []string{"merged", "replaced", "overridden", "deleted"},
	},
}
