package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool SSH连接池，按 host:port@user 复用连接
type Pool struct {
	config      *Config
	connections map[string]*pooledConnection
	mutex       sync.Mutex
	maxActive   int
	idleTimeout time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// pooledConnection 池化的连接
type pooledConnection struct {
	client   *Client
	lastUsed time.Time
	inUse    bool
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxActive       int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	SSHConfig       *Config
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		config:      config.SSHConfig,
		connections: make(map[string]*pooledConnection),
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
		stop:        make(chan struct{}),
	}
	if pool.maxActive <= 0 {
		pool.maxActive = 64
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go pool.cleanup(interval)
	return pool
}

// Lease 连接租约，用完须 Release
type Lease struct {
	*Client
	pool *Pool
	key  string
	// broken 命令执行失败时标记，释放后不再复用
	broken bool
}

// MarkBroken 标记连接不可复用
func (l *Lease) MarkBroken() { l.broken = true }

// Release 归还连接
func (l *Lease) Release() {
	l.pool.release(l.key, l.broken)
}

// Acquire 获取连接：空闲且存活的连接直接复用，否则新建
func (p *Pool) Acquire(ctx context.Context, info *ConnectionInfo) (*Lease, error) {
	key := connectionKey(info)

	p.mutex.Lock()
	if conn, ok := p.connections[key]; ok {
		if !conn.inUse && conn.client.IsConnected() {
			conn.inUse = true
			conn.lastUsed = time.Now()
			p.mutex.Unlock()
			return &Lease{Client: conn.client, pool: p, key: key}, nil
		}
		if conn.inUse {
			p.mutex.Unlock()
			return nil, fmt.Errorf("connection %s is in use", key)
		}
		_ = conn.client.Close()
		delete(p.connections, key)
	}
	if active := p.activeCountLocked(); active >= p.maxActive {
		p.mutex.Unlock()
		return nil, fmt.Errorf("connection pool is full, active connections: %d", active)
	}
	// 占位，避免并发重复建连
	placeholder := &pooledConnection{client: NewClient(p.config), inUse: true, lastUsed: time.Now()}
	p.connections[key] = placeholder
	p.mutex.Unlock()

	if err := placeholder.client.Connect(ctx, info); err != nil {
		p.mutex.Lock()
		delete(p.connections, key)
		p.mutex.Unlock()
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}
	return &Lease{Client: placeholder.client, pool: p, key: key}, nil
}

func (p *Pool) release(key string, broken bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	conn, ok := p.connections[key]
	if !ok {
		return
	}
	if broken {
		_ = conn.client.Close()
		delete(p.connections, key)
		return
	}
	conn.inUse = false
	conn.lastUsed = time.Now()
}

// Close 关闭连接池
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })

	p.mutex.Lock()
	defer p.mutex.Unlock()
	var lastErr error
	for key, conn := range p.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, key)
	}
	return lastErr
}

// Stats 连接池统计
func (p *Pool) Stats() map[string]int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	active := p.activeCountLocked()
	return map[string]int{
		"total_connections":  len(p.connections),
		"active_connections": active,
		"idle_connections":   len(p.connections) - active,
		"max_active":         p.maxActive,
	}
}

func connectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s@%s", info.Username, info.Address())
}

func (p *Pool) activeCountLocked() int {
	count := 0
	for _, conn := range p.connections {
		if conn.inUse {
			count++
		}
	}
	return count
}

func (p *Pool) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanupExpiredConnections()
		}
	}
}

// cleanupExpiredConnections 清理空闲超时或已断开的连接
func (p *Pool) cleanupExpiredConnections() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	for key, conn := range p.connections {
		if conn.inUse {
			continue
		}
		if (p.idleTimeout > 0 && now.Sub(conn.lastUsed) > p.idleTimeout) || !conn.client.IsConnected() {
			_ = conn.client.Close()
			delete(p.connections, key)
		}
	}
}
