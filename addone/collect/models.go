package collect

import (
	"encoding/json"
)

// 采集状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// BaseRecord 每行格式化数据携带的基础字段
type BaseRecord struct {
	DeviceIP     string `json:"device_ip"`
	Status       string `json:"status"`
	RawStoreJSON string `json:"raw_store_path"` // 命令 -> 原始回显存储路径（JSON）
}

// RawStorePaths 原始数据映射（命令 -> 对象路径）
type RawStorePaths map[string]string

func (r RawStorePaths) Marshal() string {
	if r == nil {
		return "{}"
	}
	b, _ := json.Marshal(r)
	return string(b)
}

// FormattedRow 格式化后的单行数据
type FormattedRow struct {
	Table string                 `json:"table"`
	Base  BaseRecord             `json:"base"`
	Data  map[string]interface{} `json:"data"`
}
