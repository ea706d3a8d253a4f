package cache

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/l2collector/internal/config"
)

func TestFactKey(t *testing.T) {
	assert.Equal(t, "l2collector:facts:10.0.0.1:l2_interfaces", FactKey("10.0.0.1", "l2_interfaces"))
}

func TestDisabledCache(t *testing.T) {
	client, err := NewRedisClient(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)

	c := NewFactCache(nil, time.Minute)
	assert.False(t, c.Enabled())
	assert.NoError(t, c.SetLatest(context.Background(), "10.0.0.1", "l2_interfaces", []string{"x"}))
	var out []string
	assert.True(t, errors.Is(c.GetLatest(context.Background(), "10.0.0.1", "l2_interfaces", &out), ErrCacheMiss))
	assert.NoError(t, c.Invalidate(context.Background(), "10.0.0.1", "l2_interfaces"))
	assert.Error(t, c.Health(context.Background()))
	assert.Nil(t, c.GetStats())
	assert.NoError(t, c.Close())
}

func TestUnreachableRedis(t *testing.T) {
	// 占用一个端口后立即关闭，确保无人监听
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = NewRedisClient(config.RedisConfig{Host: "127.0.0.1", Port: port, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)

	c := NewFactCache(redis.NewClient(&redis.Options{
		Addr:        ln.Addr().String(),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	}), time.Minute)
	defer c.Close()
	var out []string
	err = c.GetLatest(context.Background(), "10.0.0.1", "l2_interfaces", &out)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss), "连接失败不能当作未命中")
}
