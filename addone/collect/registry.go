package collect

import (
	"sort"
	"sync"
)

const defaultPlatform = "default"

var (
	registryMu sync.RWMutex
	registry   = map[string]CollectPlugin{
		defaultPlatform: &DefaultPlugin{},
	}
)

// Register 注册采集插件
func Register(name string, plugin CollectPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = plugin
}

// Get 获取指定平台的采集插件，未注册时返回默认插件
func Get(name string) CollectPlugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[name]; ok {
		return p
	}
	return registry[defaultPlatform]
}

// Lookup 与 Get 相同，但未注册时返回 false
func Lookup(name string) (CollectPlugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok && name != defaultPlatform
}

// Platforms 已注册平台（不含 default）
func Platforms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		if k != defaultPlatform {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
