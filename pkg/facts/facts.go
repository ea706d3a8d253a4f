package facts

import (
	"context"
	"sort"
)

// Connection 设备连接协作者，执行命令并返回回显文本
type Connection interface {
	Get(ctx context.Context, command string) (string, error)
}

// ConnectionFunc 便于以函数形式提供连接（离线数据、测试桩）
type ConnectionFunc func(ctx context.Context, command string) (string, error)

func (f ConnectionFunc) Get(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// Facts 网络资源事实聚合容器，资源名 -> 事实数据
type Facts struct {
	NetworkResources map[string]interface{} `json:"network_resources"`
}

// New 创建空的事实容器
func New() *Facts {
	return &Facts{NetworkResources: make(map[string]interface{})}
}

// Update 在指定资源键下合并事实（同名键覆盖）
func (f *Facts) Update(resource string, value interface{}) {
	if f.NetworkResources == nil {
		f.NetworkResources = make(map[string]interface{})
	}
	f.NetworkResources[resource] = value
}

// Get 读取指定资源的事实
func (f *Facts) Get(resource string) (interface{}, bool) {
	if f == nil || f.NetworkResources == nil {
		return nil, false
	}
	v, ok := f.NetworkResources[resource]
	return v, ok
}

// Resources 返回已填充的资源名（排序后）
func (f *Facts) Resources() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.NetworkResources))
	for k := range f.NetworkResources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
