package model

import (
	"time"
)

// GatherTask 一次批量事实采集任务
type GatherTask struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CollectorID  string    `json:"collector_id" gorm:"type:varchar(64);not null;index"`
	Resources    string    `json:"resources" gorm:"type:text;not null"`
	DeviceCount  int       `json:"device_count" gorm:"not null;default:0"`
	SuccessCount int       `json:"success_count" gorm:"not null;default:0"`
	FailedCount  int       `json:"failed_count" gorm:"not null;default:0"`
	Status       string    `json:"status" gorm:"type:varchar(16);not null;default:'running'"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (GatherTask) TableName() string {
	return "gather_tasks"
}

// 任务状态
const (
	TaskStatusRunning = "running"
	TaskStatusSuccess = "success"
	TaskStatusPartial = "partial"
	TaskStatusFailed  = "failed"
)

// FactSnapshot 单台设备单个资源的事实快照
type FactSnapshot struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID    string    `json:"task_id" gorm:"type:varchar(64);index"`
	DeviceIP  string    `json:"device_ip" gorm:"type:varchar(64);not null;index:idx_snapshot_device_resource"`
	Platform  string    `json:"platform" gorm:"type:varchar(32);not null"`
	Resource  string    `json:"resource" gorm:"type:varchar(64);not null;index:idx_snapshot_device_resource"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null"`
	ItemCount int       `json:"item_count" gorm:"not null;default:0"`
	Facts     string    `json:"facts" gorm:"type:text"` // JSON
	RawPath   string    `json:"raw_path" gorm:"type:varchar(512)"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	Duration  int64     `json:"duration"` // 毫秒
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 表名
func (FactSnapshot) TableName() string {
	return "fact_snapshots"
}
