package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sshcollectorpro/l2collector/addone/collect/platforms/cisco_ios"
	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/internal/database"
	"github.com/sshcollectorpro/l2collector/pkg/metrics"
	"github.com/sshcollectorpro/l2collector/simulate"
)

const gatherCommand = "show running-config | include ^interface|description|switchport"

const switchConfig = `interface GigabitEthernet0/1
 description server-01
 switchport access vlan 20
 switchport mode access
--More--
interface GigabitEthernet0/2
 switchport trunk native vlan 5
 switchport trunk allowed vlan 10,20,30
 switchport mode trunk
interface Loopback0
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Collector: config.CollectorConfig{
			ID: "test-collector",
			OutputFilter: config.OutputFilterConfig{
				Contains:        []string{"--more--"},
				CaseInsensitive: true,
			},
		},
		Facts: config.FactsConfig{
			Resources:   []string{"l2_interfaces"},
			Concurrency: 2,
			Timeout:     10 * time.Second,
			StoreRaw:    true,
		},
		Database: config.DatabaseConfig{SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "facts.db"), ConnMaxLifetime: time.Minute}},
		Storage: config.StorageConfig{
			Backend: "local",
			Local:   config.LocalConfig{BaseDir: filepath.Join(dir, "raw"), MkdirIfMissing: true},
		},
		SSH: config.SSHConfig{Timeout: 5 * time.Second, MaxActive: 8},
	}
}

func TestParse(t *testing.T) {
	svc := NewFactService(testConfig(t), Deps{})
	defer svc.Stop()

	out, err := svc.Parse(context.Background(), ParseRequest{Platform: "cisco_ios", Data: switchConfig})
	require.NoError(t, err)
	v, ok := out.Get("l2_interfaces")
	require.True(t, ok)
	items := v.([]map[string]interface{})
	require.Len(t, items, 2, "离线解析不访问设备，Loopback 不产生记录")
	assert.Equal(t, "GigabitEthernet0/1", items[0]["name"])

	_, err = svc.Parse(context.Background(), ParseRequest{Platform: "junos", Data: switchConfig})
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))

	_, err = svc.Parse(context.Background(), ParseRequest{Platform: "cisco_ios"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestGatherAndLatest(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, database.InitSQLite(cfg.Database.SQLite))
	t.Cleanup(func() { _ = database.Close() })

	sim, err := simulate.Start(&simulate.Config{
		Listen:   "127.0.0.1:0",
		Password: "secret",
		Devices: map[string]simulate.DeviceConfig{
			"sw1": {Commands: map[string]string{gatherCommand: switchConfig}},
			"sw2": {Commands: map[string]string{"show version": "Cisco IOS"}},
		},
	})
	require.NoError(t, err)
	defer sim.Stop()
	addr := sim.Addr()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	svc := NewFactService(cfg, Deps{Metrics: m})
	defer svc.Stop()

	resp, err := svc.Gather(context.Background(), GatherRequest{Devices: []Device{
		{IP: addr.IP.String(), Port: addr.Port, Username: "sw1", Password: "secret", Platform: "cisco_ios"},
		{IP: addr.IP.String(), Port: addr.Port, Username: "sw2", Password: "secret", Platform: "cisco_ios"},
		{IP: "192.0.2.1", Username: "x", Password: "y", Platform: "junos"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "partial", resp.Status)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 2, resp.FailedCount)
	require.Len(t, resp.Results, 3)

	ok := resp.Results[0]
	require.True(t, ok.Success, ok.Error)
	items := ok.Facts["l2_interfaces"].([]map[string]interface{})
	require.Len(t, items, 2, "Loopback 与分页提示被过滤")
	assert.Equal(t, map[string]interface{}{"vlan": 20}, items[0]["access"])
	require.Len(t, ok.RawObjects, 1)

	assert.False(t, resp.Results[1].Success)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.Contains(t, resp.Results[2].Error, "unsupported platform")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatherTotal.WithLabelValues("cisco_ios", "l2_interfaces", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatherTotal.WithLabelValues("cisco_ios", "l2_interfaces", "failed")))

	latest, err := svc.Latest(context.Background(), addr.IP.String(), "")
	require.NoError(t, err)
	assert.Equal(t, "database", latest.Source)
	assert.Len(t, latest.Facts, 2)

	task, err := database.GetTask(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "partial", task.Status)

	_, err = svc.Latest(context.Background(), "198.51.100.7", "l2_interfaces")
	assert.True(t, errors.Is(err, database.ErrSnapshotNotFound))
}

func TestGatherValidation(t *testing.T) {
	svc := NewFactService(testConfig(t), Deps{})
	defer svc.Stop()

	_, err := svc.Gather(context.Background(), GatherRequest{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	_, err = svc.Gather(context.Background(), GatherRequest{Devices: []Device{{Platform: "cisco_ios"}}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
