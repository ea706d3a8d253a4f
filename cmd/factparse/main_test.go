package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show_run.txt")
	data := "interface GigabitEthernet0/1\r\n switchport access vlan 30\r\n --More-- \r\ninterface GigabitEthernet0/2\r\n switchport mode trunk\r\n switchport trunk allowed vlan 10-12\r\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	var buf bytes.Buffer
	require.NoError(t, run(&buf, "cisco_ios", path, "l2_interfaces"))

	var out struct {
		NetworkResources map[string][]map[string]interface{} `json:"network_resources"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	items := out.NetworkResources["l2_interfaces"]
	require.Len(t, items, 2)
	assert.Equal(t, "GigabitEthernet0/1", items[0]["name"])
	assert.EqualValues(t, 30, items[0]["access"].(map[string]interface{})["vlan"])
	assert.Equal(t, []interface{}{"10-12"}, items[1]["trunk"].(map[string]interface{})["allowed_vlans"])
}

func TestRunErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, run(&buf, "cisco_ios", filepath.Join(t.TempDir(), "missing.txt"), ""))

	path := filepath.Join(t.TempDir(), "cfg.txt")
	require.NoError(t, os.WriteFile(path, []byte("interface Gi0/1\n"), 0o644))
	assert.Error(t, run(&buf, "junos", path, ""))
}
