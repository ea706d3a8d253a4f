package cisco_ios

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
)

func TestPluginRegistered(t *testing.T) {
	p, ok := collect.Lookup("cisco_ios")
	require.True(t, ok)
	assert.Equal(t, "cisco_ios", p.Name())
	assert.Equal(t, []string{GatherCommand}, p.SystemCommands())
	assert.Equal(t, []string{L2InterfacesResource}, p.Resources())
	assert.Contains(t, collect.Platforms(), "cisco_ios")
}

func TestPluginParse(t *testing.T) {
	p := NewPlugin()
	ctx := collect.ParseContext{
		Platform: "cisco_ios",
		Command:  "SHOW running-config  | include ^interface|description|switchport",
		DeviceIP: "10.0.0.1",
		Status:   collect.StatusSuccess,
		RawPaths: collect.RawStorePaths{GatherCommand: "raw/10.0.0.1/l2.txt"},
	}
	out, err := p.Parse(ctx, sampleRunningConfig)
	require.NoError(t, err)
	require.Len(t, out.Rows, 4)
	assert.Equal(t, L2InterfacesResource, out.Rows[0].Table)
	assert.Equal(t, "10.0.0.1", out.Rows[0].Base.DeviceIP)
	assert.JSONEq(t, `{"`+GatherCommand+`":"raw/10.0.0.1/l2.txt"}`, out.Rows[0].Base.RawStoreJSON)
	assert.Equal(t, "GigabitEthernet0/1", out.Rows[0].Data["name"])

	// 其他命令不解析
	out, err = p.Parse(collect.ParseContext{Command: "show version"}, "Cisco IOS")
	require.NoError(t, err)
	assert.Nil(t, out.Rows)
	assert.Equal(t, "Cisco IOS", out.Raw)
}

func TestPluginPopulateFacts(t *testing.T) {
	p := NewPlugin()
	out := facts.New()
	err := p.PopulateFacts(context.Background(), L2InterfacesResource, nil, out, sampleRunningConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{L2InterfacesResource}, out.Resources())

	err = p.PopulateFacts(context.Background(), "l3_interfaces", nil, out, sampleRunningConfig)
	assert.True(t, errors.Is(err, collect.ErrResourceNotSupported))
}

func TestDefaultPlugin(t *testing.T) {
	p := collect.Get("junos")
	assert.Equal(t, "default", p.Name())
	_, ok := collect.Lookup("junos")
	assert.False(t, ok)

	err := p.PopulateFacts(context.Background(), L2InterfacesResource, nil, facts.New(), "x")
	assert.True(t, errors.Is(err, collect.ErrResourceNotSupported))

	defaults := p.StorageDefaults()
	assert.Equal(t, "sqlite", defaults.DBStore.Type)
	assert.NotEmpty(t, defaults.RawStore.Bucket)
}
