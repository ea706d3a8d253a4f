package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config SSH配置
type Config struct {
	Timeout   time.Duration `yaml:"timeout"`
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// Client SSH客户端
type Client struct {
	config     *Config
	connection *ssh.Client
	mutex      sync.RWMutex
	// 保存最近一次成功连接的参数，用于在会话创建失败（如 EOF）时自动重连
	info *ConnectionInfo
	// stopKeepAlive 关闭时停止保活协程
	stopKeepAlive chan struct{}
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Address host:port
func (i *ConnectionInfo) Address() string {
	port := i.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(i.Host, strconv.Itoa(port))
}

// CommandResult 命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{Timeout: 30 * time.Second}
	}
	return &Client{config: config}
}

// 交换机上常见的老旧算法也放进协商列表，新算法优先
var (
	keyExchanges = []string{
		"curve25519-sha256", "ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256", "diffie-hellman-group14-sha1", "diffie-hellman-group1-sha1",
		"diffie-hellman-group-exchange-sha256", "diffie-hellman-group-exchange-sha1",
	}
	ciphers = []string{
		"aes128-gcm@openssh.com", "aes256-gcm@openssh.com",
		"aes128-ctr", "aes192-ctr", "aes256-ctr", "aes128-cbc", "3des-cbc",
	}
	macs = []string{
		"hmac-sha2-256-etm@openssh.com", "hmac-sha2-256", "hmac-sha1", "hmac-sha1-96",
	}
	hostKeyAlgorithms = []string{
		"ssh-rsa", "rsa-sha2-256", "rsa-sha2-512",
		"ecdsa-sha2-nistp256", "ecdsa-sha2-nistp384", "ecdsa-sha2-nistp521", "ssh-ed25519",
	}
)

// clientConfig 构建设备登录配置
func (c *Client) clientConfig(info *ConnectionInfo) *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User:              info.Username,
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(),
		Timeout:           c.config.Timeout,
		Config:            ssh.Config{KeyExchanges: keyExchanges, Ciphers: ciphers, MACs: macs},
		HostKeyAlgorithms: hostKeyAlgorithms,
	}
	if info.Password != "" {
		// 同时尝试 password 与 keyboard-interactive，兼容 Cisco 等设备
		cfg.Auth = []ssh.AuthMethod{
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		}
	}
	return cfg
}

// Connect 连接SSH服务器
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connectLocked(ctx, info)
}

func (c *Client) connectLocked(ctx context.Context, info *ConnectionInfo) error {
	c.info = info
	address := info.Address()

	dialer := &net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, c.clientConfig(info))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}
	// 握手完成后取消 deadline，后续由命令级 ctx 控制
	_ = conn.SetDeadline(time.Time{})

	c.connection = ssh.NewClient(sshConn, chans, reqs)
	c.stopKeepAlive = make(chan struct{})
	go c.keepAlive(c.connection, c.stopKeepAlive)
	return nil
}

// newSessionWithRetry 创建会话（带重试）
// 部分设备在登录后立刻开会话会返回 "administratively prohibited" 或 EOF
func (c *Client) newSessionWithRetry(ctx context.Context) (*ssh.Session, error) {
	backoffs := []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
	var lastErr error
	for _, d := range backoffs {
		if d > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
		c.mutex.RLock()
		conn := c.connection
		c.mutex.RUnlock()
		if conn == nil {
			return nil, fmt.Errorf("SSH connection not established")
		}
		sess, err := conn.NewSession()
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if strings.Contains(strings.ToLower(err.Error()), "eof") && c.info != nil {
			// 连接被设备关闭，按保存的参数重连一次
			c.mutex.Lock()
			c.closeLocked()
			_ = c.connectLocked(ctx, c.info)
			c.mutex.Unlock()
		}
	}
	return nil, lastErr
}

// ExecuteCommand 通过 exec 通道执行单个命令，ctx 取消时关闭会话
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*CommandResult, error) {
	startTime := time.Now()
	result := &CommandResult{Command: command}

	session, err := c.newSessionWithRetry(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create session: %v", err)
		result.ExitCode = -1
		return result, err
	}
	defer session.Close()

	type execOut struct {
		output []byte
		err    error
	}
	done := make(chan execOut, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- execOut{out, err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		result.Duration = time.Since(startTime)
		result.Error = "command timeout"
		result.ExitCode = -1
		return result, ctx.Err()
	case r := <-done:
		result.Duration = time.Since(startTime)
		result.Output = string(r.output)
		if r.err != nil {
			result.Error = r.err.Error()
			if exitError, ok := r.err.(*ssh.ExitError); ok {
				result.ExitCode = exitError.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			return result, r.err
		}
		return result, nil
	}
}

// Get 执行命令并返回原始回显
func (c *Client) Get(ctx context.Context, command string) (string, error) {
	res, err := c.ExecuteCommand(ctx, command)
	if err != nil {
		return "", fmt.Errorf("execute %q: %w", command, err)
	}
	return res.Output, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.stopKeepAlive != nil {
		close(c.stopKeepAlive)
		c.stopKeepAlive = nil
	}
	if c.connection != nil {
		err := c.connection.Close()
		c.connection = nil
		return err
	}
	return nil
}

// IsConnected 发送 keepalive 请求检查连接（不创建会话）
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return false
	}
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

func (c *Client) keepAlive(conn *ssh.Client, stop <-chan struct{}) {
	if c.config.KeepAlive <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				// 连接已断开，置空以便池清理
				c.mutex.Lock()
				if c.connection == conn {
					c.closeLocked()
				}
				c.mutex.Unlock()
				return
			}
		}
	}
}
