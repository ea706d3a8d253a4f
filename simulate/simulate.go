package simulate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

// invalidInput IOS 对未知命令的回显
const invalidInput = "% Invalid input detected at '^' marker.\r\n"

// Config simulate.yaml 配置结构
// 用户名即设备名，按设备名查找命令回显
type Config struct {
	Listen   string                  `mapstructure:"listen"`
	Password string                  `mapstructure:"password"`
	Devices  map[string]DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备：命令 -> 回显
type DeviceConfig struct {
	Commands map[string]string `mapstructure:"commands"`
}

// LoadConfig 读取 simulate.yaml
func LoadConfig(path string) (*Config, error) {
	// 命令中可能含 "."，换用不会出现在命令里的键分隔符
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1:2222")
	v.SetDefault("password", "nova")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// Server SSH 模拟服务：只支持 exec 请求
type Server struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// Start 在 cfg.Listen 上启动模拟服务（端口 0 表示随机端口）
func Start(cfg *Config) (*Server, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("host key signer: %w", err)
	}
	listen := cfg.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("simulate listen %s: %w", listen, err)
	}

	s := &Server{cfg: cfg, listener: ln, hostKey: signer}
	s.wg.Add(1)
	go s.serve()
	logger.WithField("addr", ln.Addr().String()).Info("Simulate: started")
	return s, nil
}

// Addr 实际监听地址
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Reload 热更新设备回显
func (s *Server) Reload(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Stop 停止服务
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(nc)
		}()
	}
}

func (s *Server) handleConn(nc net.Conn) {
	s.mu.RLock()
	password := s.cfg.Password
	s.mu.RUnlock()

	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.WithError(err).Debug("Simulate: SSH handshake failed")
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(channel, requests, conn.User())
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, device string) {
	defer channel.Close()
	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		out, ok := s.lookup(device, payload.Command)
		logger.WithFields(logrus.Fields{"device": device, "cmd": payload.Command, "matched": ok}).Debug("Simulate: exec")
		status := uint32(0)
		if !ok {
			out, status = invalidInput, 1
		}
		_, _ = channel.Write([]byte(ensureCRLF(out)))
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func (s *Server) lookup(device, command string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.cfg.Devices[device]
	if !ok {
		return "", false
	}
	cmd := strings.TrimSpace(command)
	for k, v := range dev.Commands {
		if strings.EqualFold(strings.TrimSpace(k), cmd) {
			return v, true
		}
	}
	return "", false
}

// ensureCRLF 设备回显统一使用 \r\n
func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
