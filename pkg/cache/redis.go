package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

// ErrCacheMiss 缓存中没有对应键
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "l2collector:facts"

// FactCache 设备最新事实缓存，client 为 nil 时所有操作为空操作
type FactCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient 按配置创建 Redis 客户端并测试连接；Host 为空时返回 nil
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache initialized successfully")
	return rdb, nil
}

// NewFactCache 创建事实缓存
func NewFactCache(client *redis.Client, ttl time.Duration) *FactCache {
	return &FactCache{client: client, ttl: ttl}
}

// Enabled 是否连接了 Redis
func (c *FactCache) Enabled() bool {
	return c != nil && c.client != nil
}

// FactKey 缓存键：前缀:设备:资源
func FactKey(deviceIP, resource string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, deviceIP, resource)
}

// SetLatest 写入设备某资源的最新事实
func (c *FactCache) SetLatest(ctx context.Context, deviceIP, resource string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, FactKey(deviceIP, resource), data, c.ttl).Err()
}

// GetLatest 读取设备某资源的最新事实，未命中返回 ErrCacheMiss
func (c *FactCache) GetLatest(ctx context.Context, deviceIP, resource string, dest interface{}) error {
	if !c.Enabled() {
		return ErrCacheMiss
	}
	data, err := c.client.Get(ctx, FactKey(deviceIP, resource)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get value: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Invalidate 删除设备的缓存事实
func (c *FactCache) Invalidate(ctx context.Context, deviceIP string, resources ...string) error {
	if !c.Enabled() || len(resources) == 0 {
		return nil
	}
	keys := make([]string, 0, len(resources))
	for _, r := range resources {
		keys = append(keys, FactKey(deviceIP, r))
	}
	return c.client.Del(ctx, keys...).Err()
}

// Health 检查Redis健康状态
func (c *FactCache) Health(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("redis not initialized")
	}
	return c.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (c *FactCache) Close() error {
	if c.Enabled() {
		return c.client.Close()
	}
	return nil
}

// GetStats 连接池统计
func (c *FactCache) GetStats() map[string]interface{} {
	if !c.Enabled() {
		return nil
	}
	poolStats := c.client.PoolStats()
	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}
