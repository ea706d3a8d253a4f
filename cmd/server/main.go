package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/l2collector/api/router"
	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/internal/database"
	"github.com/sshcollectorpro/l2collector/internal/service"
	"github.com/sshcollectorpro/l2collector/pkg/cache"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
	"github.com/sshcollectorpro/l2collector/pkg/metrics"
	"github.com/sshcollectorpro/l2collector/simulate"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logConfig(cfg)); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"version": cfg.Collector.Version, "collector_id": cfg.Collector.ID}).Info("Starting L2 Collector Server")

	// 初始化数据库
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Redis 可选；连接失败时降级为仅数据库
	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, latest facts served from database only")
	}
	factCache := cache.NewFactCache(rdb, cfg.Redis.TTL)
	defer factCache.Close()

	m, err := metrics.New(nil)
	if err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	factService := service.NewFactService(cfg, service.Deps{Cache: factCache, Metrics: m})
	defer factService.Stop()

	// 启动模拟服务（可选）
	sim := &simulator{path: cfg.Server.SimulatePath}
	if cfg.Server.SimulateEnable {
		sim.start()
	}
	defer sim.stop()

	r := router.SetupRouter(factService, factCache, m)
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "mode": cfg.Server.Mode}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 配置文件热更新：刷新日志与模拟开关，其余配置需重启生效
	go watchFile(*configPath, func() {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			logger.WithError(err).Warn("Config reload failed")
			return
		}
		if err := logger.Init(logConfig(newCfg)); err != nil {
			logger.WithError(err).Warn("Logger reinit failed")
		}
		sim.setPath(newCfg.Server.SimulatePath)
		if newCfg.Server.SimulateEnable {
			sim.start()
		} else {
			sim.stop()
		}
		logger.Info("Config reloaded")
	})
	if cfg.Server.SimulateEnable {
		go watchFile(cfg.Server.SimulatePath, sim.reload)
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("Server shutdown complete")
	}
}

func logConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
}

// watchFile 监听文件变更，300ms 去抖后回调
func watchFile(path string, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("File watch init failed")
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("File watch add failed")
		return
	}

	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, onChange)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).WithField("path", path).Warn("File watch error")
		}
	}
}

// simulator 管理内置模拟设备的启停与热更新
type simulator struct {
	mu   sync.Mutex
	path string
	srv  *simulate.Server
}

func (s *simulator) setPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

func (s *simulator) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return
	}
	sc, err := simulate.LoadConfig(s.path)
	if err != nil {
		logger.WithError(err).Warn("Simulate: failed to load config")
		return
	}
	srv, err := simulate.Start(sc)
	if err != nil {
		logger.WithError(err).Warn("Simulate: failed to start")
		return
	}
	s.srv = srv
	logger.WithFields(logrus.Fields{"addr": srv.Addr().String(), "devices": len(sc.Devices)}).Info("Simulate: started")
}

func (s *simulator) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}
	sc, err := simulate.LoadConfig(s.path)
	if err != nil {
		logger.WithError(err).Warn("Simulate: reload failed")
		return
	}
	s.srv.Reload(sc)
	logger.Info("Simulate: hot reload success")
}

func (s *simulator) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		s.srv.Stop()
		s.srv = nil
		logger.Info("Simulate: stopped")
	}
}
