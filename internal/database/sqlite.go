package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/internal/model"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

var db *gorm.DB

// pragmas 同时写入 DSN 并在连接建立后再执行一次
var pragmas = []string{
	"busy_timeout(15000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// busyMarkers modernc 驱动的锁争用错误文案
var busyMarkers = []string{
	"database is locked",
	"sqlite_busy",
	"cannot start a transaction within a transaction",
}

// InitSQLite 初始化快照库并迁移表结构
func InitSQLite(cfg config.SQLiteConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	conn, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path + "?" + strings.Join(params, "&"),
	}, &gorm.Config{
		Logger: gormLogger.New(logger.GetLogger(), gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		// 快照写入已自行包事务
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接，PRAGMA 才能对所有语句生效
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	for _, p := range pragmas {
		stmt := "PRAGMA " + strings.Replace(strings.TrimSuffix(p, ")"), "(", "=", 1)
		if err := conn.Exec(stmt).Error; err != nil {
			logger.WithError(err).WithField("pragma", p).Warn("SQLite pragma not applied")
		}
	}

	if err := conn.AutoMigrate(&model.GatherTask{}, &model.FactSnapshot{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	db = conn
	logger.WithField("path", cfg.Path).Info("SQLite database initialized successfully")
	return nil
}

// GetDB 获取数据库实例，未初始化时为 nil
func GetDB() *gorm.DB {
	return db
}

// IsBusyError 判断是否为 SQLite 锁争用错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// WithRetry 锁争用时退避重试 fn，其他错误立即返回
func WithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	return retryBusy(attempts, sleep, func() error { return fn(db) })
}

// TransactionWithRetry 以短事务执行 fn，锁争用时整体重试
func TransactionWithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	return retryBusy(attempts, sleep, func() error { return db.Transaction(fn) })
}

func retryBusy(attempts int, sleep time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = 50 * time.Millisecond
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsBusyError(err) {
			return err
		}
		time.Sleep(sleep)
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func Health(ctx context.Context) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetStats 连接池统计
func GetStats() map[string]interface{} {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}
