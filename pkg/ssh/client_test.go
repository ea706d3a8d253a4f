package ssh_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/l2collector/pkg/ssh"
	"github.com/sshcollectorpro/l2collector/simulate"
)

const showVersion = "show version"

func startSimulator(t *testing.T) *simulate.Server {
	t.Helper()
	srv, err := simulate.Start(&simulate.Config{
		Listen:   "127.0.0.1:0",
		Password: "secret",
		Devices: map[string]simulate.DeviceConfig{
			"sw1": {Commands: map[string]string{showVersion: "Cisco IOS Software, C2960 Software\n"}},
		},
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func connInfo(srv *simulate.Server, user, password string) *ssh.ConnectionInfo {
	addr := srv.Addr()
	return &ssh.ConnectionInfo{Host: addr.IP.String(), Port: addr.Port, Username: user, Password: password}
}

func TestConnectionInfoAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", (&ssh.ConnectionInfo{Host: "10.0.0.1"}).Address())
	assert.Equal(t, "10.0.0.1:2222", (&ssh.ConnectionInfo{Host: "10.0.0.1", Port: 2222}).Address())
	assert.Equal(t, "[fe80::1]:22", (&ssh.ConnectionInfo{Host: "fe80::1"}).Address())
}

func TestClientGet(t *testing.T) {
	srv := startSimulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := ssh.NewClient(&ssh.Config{Timeout: 5 * time.Second})
	require.NoError(t, client.Connect(ctx, connInfo(srv, "sw1", "secret")))
	defer client.Close()
	assert.True(t, client.IsConnected())

	out, err := client.Get(ctx, showVersion)
	require.NoError(t, err)
	assert.Equal(t, "Cisco IOS Software, C2960 Software\r\n", out)

	// 未知命令设备返回非零退出码
	res, err := client.ExecuteCommand(ctx, "show foo")
	require.Error(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "Invalid input")
}

func TestClientAuthFailure(t *testing.T) {
	srv := startSimulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := ssh.NewClient(&ssh.Config{Timeout: 5 * time.Second})
	err := client.Connect(ctx, connInfo(srv, "sw1", "wrong"))
	require.Error(t, err)
	assert.False(t, client.IsConnected())
}

func TestPoolReuse(t *testing.T) {
	srv := startSimulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := ssh.NewPool(&ssh.PoolConfig{MaxActive: 2, SSHConfig: &ssh.Config{Timeout: 5 * time.Second}})
	defer pool.Close()
	info := connInfo(srv, "sw1", "secret")

	first, err := pool.Acquire(ctx, info)
	require.NoError(t, err)
	_, err = pool.Acquire(ctx, info)
	require.Error(t, err, "same device must not be leased twice")
	first.Release()

	second, err := pool.Acquire(ctx, info)
	require.NoError(t, err)
	assert.Same(t, first.Client, second.Client)

	stats := pool.Stats()
	assert.Equal(t, 1, stats["total_connections"])
	assert.Equal(t, 1, stats["active_connections"])

	second.MarkBroken()
	second.Release()
	assert.Equal(t, 0, pool.Stats()["total_connections"])
}

func TestPoolFull(t *testing.T) {
	srv := startSimulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := ssh.NewPool(&ssh.PoolConfig{MaxActive: 1, SSHConfig: &ssh.Config{Timeout: 5 * time.Second}})
	defer pool.Close()

	lease, err := pool.Acquire(ctx, connInfo(srv, "sw1", "secret"))
	require.NoError(t, err)
	defer lease.Release()

	_, err = pool.Acquire(ctx, connInfo(srv, "sw2", "secret"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool is full")
}
