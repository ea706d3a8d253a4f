package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sshcollectorpro/l2collector/internal/model"
)

// ErrSnapshotNotFound 没有对应的事实快照
var ErrSnapshotNotFound = errors.New("fact snapshot not found")

const (
	writeAttempts = 5
	writeBackoff  = 50 * time.Millisecond
)

// CreateTask 写入采集任务
func CreateTask(task *model.GatherTask) error {
	return WithRetry(func(tx *gorm.DB) error {
		return tx.Create(task).Error
	}, writeAttempts, writeBackoff)
}

// FinishTask 更新任务统计与结束状态
func FinishTask(task *model.GatherTask) error {
	return WithRetry(func(tx *gorm.DB) error {
		return tx.Model(&model.GatherTask{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"success_count": task.SuccessCount,
			"failed_count":  task.FailedCount,
			"status":        task.Status,
			"end_time":      task.EndTime,
			"duration":      task.Duration,
		}).Error
	}, writeAttempts, writeBackoff)
}

// SaveSnapshots 在一个事务内写入同一设备的多个资源快照
func SaveSnapshots(snapshots []*model.FactSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return TransactionWithRetry(func(tx *gorm.DB) error {
		for _, s := range snapshots {
			if err := tx.Create(s).Error; err != nil {
				return fmt.Errorf("save snapshot %s/%s: %w", s.DeviceIP, s.Resource, err)
			}
		}
		return nil
	}, writeAttempts, writeBackoff)
}

// LatestSnapshot 查询设备某资源最近一次成功的快照
func LatestSnapshot(deviceIP, resource string) (*model.FactSnapshot, error) {
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var snap model.FactSnapshot
	err := db.Where("device_ip = ? AND resource = ? AND status = ?", deviceIP, resource, model.TaskStatusSuccess).
		Order("created_at DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTask 按 ID 查询任务
func GetTask(id string) (*model.GatherTask, error) {
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var task model.GatherTask
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
