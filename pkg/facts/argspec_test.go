package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = ArgSpec{
	"config": {
		Type:     TypeList,
		Elements: TypeDict,
		Options: ArgSpec{
			"name": {Type: TypeStr, Required: true},
			"access": {Type: TypeDict, Options: ArgSpec{
				"vlan": {Type: TypeInt},
			}},
			"trunk": {Type: TypeDict, Options: ArgSpec{
				"encapsulation": {Type: TypeStr, Choices: []string{"dot1q", "isl", "negotiate"}},
				"allowed_vlans": {Type: TypeRaw},
				"pruning_vlans": {Type: TypeList, Elements: TypeStr},
			}},
		},
	},
	"state": {Type: TypeStr, Default: "merged", Choices: []string{"merged", "replaced"}},
}

func TestValidateConfigFillsMissingKeys(t *testing.T) {
	in := map[string]interface{}{
		"config": []interface{}{
			map[string]interface{}{"name": "GigabitEthernet0/1", "access": map[string]interface{}{"vlan": 20}},
		},
	}
	out, err := ValidateConfig(testSpec, in)
	require.NoError(t, err)
	assert.Equal(t, "merged", out["state"], "缺失的 state 应取默认值")

	items := out["config"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Contains(t, item, "trunk", "规格中的键应以 nil 占位")
	assert.Nil(t, item["trunk"])
	assert.Equal(t, 20, item["access"].(map[string]interface{})["vlan"])

	// 入参不被修改
	orig := in["config"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, orig, "trunk")
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		item map[string]interface{}
	}{
		{"缺少必填 name", map[string]interface{}{"access": map[string]interface{}{"vlan": 1}}},
		{"未知参数", map[string]interface{}{"name": "Gi0/1", "mode": "access"}},
		{"vlan 非整数", map[string]interface{}{"name": "Gi0/1", "access": map[string]interface{}{"vlan": "abc"}}},
		{"封装不在可选范围", map[string]interface{}{"name": "Gi0/1", "trunk": map[string]interface{}{"encapsulation": "qinq"}}},
		{"access 不是字典", map[string]interface{}{"name": "Gi0/1", "access": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateConfig(testSpec, map[string]interface{}{"config": []interface{}{tt.item}})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateConfigCoercion(t *testing.T) {
	out, err := ValidateConfig(testSpec, map[string]interface{}{
		"config": []map[string]interface{}{{
			"name":   "Gi0/2",
			"access": map[string]interface{}{"vlan": float64(30)},
			"trunk":  map[string]interface{}{"pruning_vlans": "10,20", "allowed_vlans": "all"},
		}},
	})
	require.NoError(t, err)
	item := out["config"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 30, item["access"].(map[string]interface{})["vlan"])
	trunk := item["trunk"].(map[string]interface{})
	assert.Equal(t, []interface{}{"10", "20"}, trunk["pruning_vlans"])
	assert.Equal(t, "all", trunk["allowed_vlans"], "raw 类型原样透传")
}

func TestRemoveEmpties(t *testing.T) {
	in := map[string]interface{}{
		"name":   "FastEthernet0/3",
		"access": nil,
		"trunk": map[string]interface{}{
			"encapsulation": nil,
			"native_vlan":   nil,
			"pruning_vlans": []interface{}{},
		},
		"desc":  "",
		"vlan":  0,
		"flag":  false,
		"items": []interface{}{map[string]interface{}{"a": nil, "b": "x"}},
	}
	out := RemoveEmpties(in)
	assert.Equal(t, map[string]interface{}{
		"name":  "FastEthernet0/3",
		"vlan":  0,
		"flag":  false,
		"items": []interface{}{map[string]interface{}{"b": "x"}},
	}, out)
}

func TestFactsContainer(t *testing.T) {
	f := New()
	_, ok := f.Get("l2_interfaces")
	assert.False(t, ok)

	f.Update("l2_interfaces", []interface{}{"x"})
	f.Update("interfaces", []interface{}{})
	assert.Equal(t, []string{"interfaces", "l2_interfaces"}, f.Resources())

	var empty Facts
	empty.Update("vlans", 1)
	v, ok := empty.Get("vlans")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestConnectionFunc(t *testing.T) {
	var conn Connection = ConnectionFunc(func(ctx context.Context, command string) (string, error) {
		return "echo " + command, nil
	})
	out, err := conn.Get(context.Background(), "show run")
	require.NoError(t, err)
	assert.Equal(t, "echo show run", out)
}
