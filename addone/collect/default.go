package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
)

// ErrResourceNotSupported 平台不支持该事实资源
var ErrResourceNotSupported = errors.New("resource not supported")

// MinioConfig 原始数据对象存储配置
type MinioConfig struct {
	Host      string
	Port      int
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// DBConfig 事实快照存储配置
type DBConfig struct {
	Type   string
	Path   string
	Tables []string
}

// StorageDefaults 存储默认配置
type StorageDefaults struct {
	RawStore MinioConfig
	DBStore  DBConfig
}

// ParseContext 解析上下文
type ParseContext struct {
	Platform string
	Command  string
	DeviceIP string
	Status   string
	RawPaths RawStorePaths
}

// ParseOutput 解析输出
type ParseOutput struct {
	Platform string
	Command  string
	Raw      string
	Rows     []FormattedRow
}

// CollectPlugin 采集插件接口
type CollectPlugin interface {
	Name() string
	StorageDefaults() StorageDefaults
	// SystemCommands 平台内置采集命令
	SystemCommands() []string
	// Parse 将原始命令输出解析为格式化行
	Parse(ctx ParseContext, raw string) (ParseOutput, error)
	// Resources 平台支持的事实资源
	Resources() []string
	// PopulateFacts 填充指定资源的事实；data 为空时通过 conn 采集
	PopulateFacts(ctx context.Context, resource string, conn facts.Connection, out *facts.Facts, data string) error
}

// DefaultPlugin 系统默认采集插件
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return defaultPlatform }

func (p *DefaultPlugin) StorageDefaults() StorageDefaults {
	raw := MinioConfig{
		Host:      "127.0.0.1",
		Port:      9000,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "l2collector",
	}
	db := DBConfig{
		Type:   "sqlite",
		Path:   "./data/l2collector.db",
		Tables: []string{"fact_snapshots"},
	}

	// YAML 配置覆盖
	if cfg := config.Get(); cfg != nil {
		m := cfg.Storage.Minio
		if m.Host != "" {
			raw.Host = m.Host
		}
		if m.Port != 0 {
			raw.Port = m.Port
		}
		if m.AccessKey != "" {
			raw.AccessKey = m.AccessKey
		}
		if m.SecretKey != "" {
			raw.SecretKey = m.SecretKey
		}
		if m.Bucket != "" {
			raw.Bucket = m.Bucket
		}
		raw.Secure = m.Secure
		if p := cfg.Database.SQLite.Path; p != "" {
			db.Path = p
		}
	}
	return StorageDefaults{RawStore: raw, DBStore: db}
}

// SystemCommands 默认平台不提供内置命令
func (p *DefaultPlugin) SystemCommands() []string { return []string{} }

func (p *DefaultPlugin) Parse(ctx ParseContext, raw string) (ParseOutput, error) {
	// 默认不解析，直接返回原始数据包裹
	return ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw}, nil
}

func (p *DefaultPlugin) Resources() []string { return nil }

func (p *DefaultPlugin) PopulateFacts(ctx context.Context, resource string, conn facts.Connection, out *facts.Facts, data string) error {
	return fmt.Errorf("%w: %s on platform %s", ErrResourceNotSupported, resource, defaultPlatform)
}
