package cisco_ios

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitConfig(t *testing.T) {
	blocks := SplitConfig("interface Gi0/1\r\n switchport mode access\r\ninterface Gi0/2\r\n\r\n")
	assert.Equal(t, []string{"Gi0/1\n switchport mode access\n", "Gi0/2\n\n"}, blocks)

	// 首个 interface 之前的非空内容保留为一块
	blocks = SplitConfig("GigabitEthernet0/1\n switchport mode trunk\n")
	assert.Equal(t, []string{"GigabitEthernet0/1\n switchport mode trunk\n"}, blocks)

	assert.Empty(t, SplitConfig(""))
	assert.Empty(t, SplitConfig("\n  \n"))

	// 行中出现的 "interface " 不切分
	blocks = SplitConfig("interface Gi0/1\n description to interface Gi0/9\n")
	assert.Len(t, blocks, 1)
}

func TestParseConfArg(t *testing.T) {
	block := "Gi0/1\n switchport trunk native vlan 5\n switchport trunk allowed vlan 10,20\n switchport trunk allowed vlan add 30\n"

	v, ok := ParseConfArg(block, "native vlan")
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	v, ok = ParseConfArg(block, "allowed vlan")
	assert.True(t, ok)
	assert.Equal(t, "10,20", v, "只取首个匹配行")

	_, ok = ParseConfArg(block, "pruning vlan")
	assert.False(t, ok)

	// 指令须以空白分隔
	_, ok = ParseConfArg(" xnative vlan 5\n", "native vlan")
	assert.False(t, ok)

	// 值为空视为缺失
	_, ok = ParseConfArg(" switchport access vlan \n", "switchport access vlan")
	assert.False(t, ok)
}

func TestHeaderToken(t *testing.T) {
	assert.Equal(t, "GigabitEthernet0/1", headerToken("GigabitEthernet0/1 point-to-point\n"))
	assert.Equal(t, "", headerToken(" switchport mode access\n"))
	assert.Equal(t, "", headerToken(""))
}
