package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/internal/database"
	"github.com/sshcollectorpro/l2collector/internal/model"
	"github.com/sshcollectorpro/l2collector/internal/util"
	"github.com/sshcollectorpro/l2collector/pkg/cache"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
	"github.com/sshcollectorpro/l2collector/pkg/metrics"
	"github.com/sshcollectorpro/l2collector/pkg/ssh"
)

var (
	// ErrUnsupportedPlatform 平台未注册采集插件
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidRequest 请求参数缺失或非法
	ErrInvalidRequest = errors.New("invalid request")
)

// Device 待采集设备
type Device struct {
	IP       string `json:"device_ip"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"user_name"`
	Password string `json:"password"`
	Platform string `json:"device_platform"`
}

// ParseRequest 离线解析请求
type ParseRequest struct {
	Platform  string   `json:"device_platform"`
	Resources []string `json:"resources,omitempty"`
	Data      string   `json:"data"`
}

// GatherRequest 批量采集请求
type GatherRequest struct {
	Devices   []Device `json:"devices"`
	Resources []string `json:"resources,omitempty"`
}

// DeviceResult 单台设备采集结果
type DeviceResult struct {
	DeviceIP   string                 `json:"device_ip"`
	Platform   string                 `json:"device_platform"`
	Success    bool                   `json:"success"`
	Facts      map[string]interface{} `json:"network_resources,omitempty"`
	RawObjects []StoredObject         `json:"raw_objects,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
}

// GatherResponse 批量采集响应
type GatherResponse struct {
	TaskID       string          `json:"task_id"`
	Status       string          `json:"status"`
	SuccessCount int             `json:"success_count"`
	FailedCount  int             `json:"failed_count"`
	Results      []*DeviceResult `json:"results"`
	DurationMS   int64           `json:"duration_ms"`
}

// LatestResult 最新事实查询结果
type LatestResult struct {
	DeviceIP string      `json:"device_ip"`
	Resource string      `json:"resource"`
	Source   string      `json:"source"` // cache | database
	Facts    interface{} `json:"facts"`
}

// cachedFacts 缓存中保存的结构
type cachedFacts struct {
	Facts       interface{} `json:"facts"`
	CollectedAt time.Time   `json:"collected_at"`
}

// FactService 事实采集服务
type FactService struct {
	config  *config.Config
	sshPool *ssh.Pool
	storage StorageWriter
	cache   *cache.FactCache
	metrics *metrics.Collector

	mutex   sync.RWMutex
	running map[string]context.CancelFunc
}

// Deps 服务依赖，未提供的依赖按配置创建或禁用
type Deps struct {
	Pool    *ssh.Pool
	Storage StorageWriter
	Cache   *cache.FactCache
	Metrics *metrics.Collector
}

// NewFactService 创建事实采集服务
func NewFactService(cfg *config.Config, deps Deps) *FactService {
	if deps.Pool == nil {
		deps.Pool = ssh.NewPool(&ssh.PoolConfig{
			MaxActive:       cfg.SSH.MaxActive,
			IdleTimeout:     cfg.SSH.IdleTimeout,
			CleanupInterval: cfg.SSH.CleanupInterval,
			SSHConfig: &ssh.Config{
				Timeout:   cfg.SSH.Timeout,
				KeepAlive: cfg.SSH.KeepAliveInterval,
			},
		})
	}
	if deps.Storage == nil {
		deps.Storage = NewStorageWriter(cfg.Storage)
	}
	return &FactService{
		config:  cfg,
		sshPool: deps.Pool,
		storage: deps.Storage,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		running: make(map[string]context.CancelFunc),
	}
}

// Parse 对给定配置文本离线生成事实，不访问设备
func (s *FactService) Parse(ctx context.Context, req ParseRequest) (*facts.Facts, error) {
	if strings.TrimSpace(req.Data) == "" {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidRequest)
	}
	plugin, err := s.plugin(req.Platform)
	if err != nil {
		return nil, err
	}
	out := facts.New()
	for _, res := range s.resources(plugin, req.Resources) {
		if err := plugin.PopulateFacts(ctx, res, nil, out, req.Data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Gather 并发采集多台设备；单台失败只记录在结果中，不影响其他设备
func (s *FactService) Gather(ctx context.Context, req GatherRequest) (*GatherResponse, error) {
	if len(req.Devices) == 0 {
		return nil, fmt.Errorf("%w: devices is required", ErrInvalidRequest)
	}
	for i, d := range req.Devices {
		if strings.TrimSpace(d.IP) == "" {
			return nil, fmt.Errorf("%w: devices[%d].device_ip is required", ErrInvalidRequest, i)
		}
	}

	start := time.Now()
	task := &model.GatherTask{
		ID:          uuid.New().String(),
		CollectorID: s.config.Collector.ID,
		Resources:   strings.Join(req.Resources, ","),
		DeviceCount: len(req.Devices),
		Status:      model.TaskStatusRunning,
		StartTime:   start,
	}
	persist := database.GetDB() != nil
	if persist {
		if err := database.CreateTask(task); err != nil {
			logger.WithError(err).WithField("task_id", task.ID).Error("Failed to save gather task")
		}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.addRunning(task.ID, cancel)
	defer s.removeRunning(task.ID)

	results := make([]*DeviceResult, len(req.Devices))
	var g errgroup.Group
	g.SetLimit(max(1, s.config.Facts.Concurrency))
	for i := range req.Devices {
		i := i
		g.Go(func() error {
			results[i] = s.gatherDevice(taskCtx, task.ID, req.Devices[i], req.Resources)
			return nil
		})
	}
	_ = g.Wait()

	resp := &GatherResponse{TaskID: task.ID, Results: results}
	for _, r := range results {
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.FailedCount++
		}
	}
	switch {
	case resp.FailedCount == 0:
		resp.Status = model.TaskStatusSuccess
	case resp.SuccessCount == 0:
		resp.Status = model.TaskStatusFailed
	default:
		resp.Status = model.TaskStatusPartial
	}
	resp.DurationMS = time.Since(start).Milliseconds()

	if persist {
		task.SuccessCount, task.FailedCount = resp.SuccessCount, resp.FailedCount
		task.Status = resp.Status
		task.EndTime = time.Now()
		task.Duration = resp.DurationMS
		if err := database.FinishTask(task); err != nil {
			logger.WithError(err).WithField("task_id", task.ID).Error("Failed to update gather task")
		}
	}
	s.metrics.SetPoolStats(s.sshPool.Stats())

	logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"status":  resp.Status,
		"success": resp.SuccessCount,
		"failed":  resp.FailedCount,
	}).Info("Gather task finished")
	return resp, nil
}

// gatherDevice 采集单台设备的全部资源
func (s *FactService) gatherDevice(ctx context.Context, taskID string, dev Device, resources []string) *DeviceResult {
	start := time.Now()
	platform := strings.ToLower(strings.TrimSpace(dev.Platform))
	result := &DeviceResult{DeviceIP: dev.IP, Platform: platform}
	log := logger.WithFields(logrus.Fields{"task_id": taskID, "device_ip": dev.IP, "platform": platform})

	fail := func(err error) *DeviceResult {
		result.Error = err.Error()
		result.DurationMS = time.Since(start).Milliseconds()
		log.WithError(err).Warn("Device gather failed")
		s.metrics.ObserveDeviceDuration(platform, time.Since(start))
		return result
	}

	plugin, err := s.plugin(platform)
	if err != nil {
		return fail(err)
	}
	resources = s.resources(plugin, resources)

	if s.config.Facts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Facts.Timeout)
		defer cancel()
	}

	lease, err := s.sshPool.Acquire(ctx, &ssh.ConnectionInfo{Host: dev.IP, Port: dev.Port, Username: dev.Username, Password: dev.Password})
	if err != nil {
		for _, res := range resources {
			s.metrics.ObserveGather(platform, res, collect.StatusFailed, 0, "")
		}
		return fail(err)
	}
	conn := &recordingConnection{
		client:   lease.Client,
		deviceIP: dev.IP,
		filter: util.LineFilter{
			Prefixes:        s.config.Collector.OutputFilter.Prefixes,
			Contains:        s.config.Collector.OutputFilter.Contains,
			CaseInsensitive: s.config.Collector.OutputFilter.CaseInsensitive,
		},
		outputs: make(map[string]string),
	}
	defer func() {
		if conn.broken {
			lease.MarkBroken()
		}
		lease.Release()
	}()

	out := facts.New()
	snapshots := make([]*model.FactSnapshot, 0, len(resources))
	var firstErr error
	for _, res := range resources {
		resStart := time.Now()
		snap := &model.FactSnapshot{
			ID:       uuid.New().String(),
			TaskID:   taskID,
			DeviceIP: dev.IP,
			Platform: platform,
			Resource: res,
			Status:   collect.StatusSuccess,
		}
		if err := plugin.PopulateFacts(ctx, res, conn, out, ""); err != nil {
			snap.Status = collect.StatusFailed
			snap.ErrorMsg = err.Error()
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", res, err)
			}
			s.metrics.ObserveGather(platform, res, collect.StatusFailed, 0, "")
		} else {
			value, _ := out.Get(res)
			snap.ItemCount = itemCount(value)
			if b, err := json.Marshal(value); err == nil {
				snap.Facts = string(b)
			}
			s.metrics.ObserveGather(platform, res, collect.StatusSuccess, snap.ItemCount, dev.IP)
		}
		snap.Duration = time.Since(resStart).Milliseconds()
		snapshots = append(snapshots, snap)
	}

	result.Facts = out.NetworkResources
	if s.config.Facts.StoreRaw {
		rawPaths := s.storeOutputs(ctx, taskID, dev.IP, start, conn.snapshot(), result)
		for _, snap := range snapshots {
			snap.RawPath = rawPaths.Marshal()
		}
	}
	if database.GetDB() != nil {
		if err := database.SaveSnapshots(snapshots); err != nil {
			log.WithError(err).Error("Failed to save fact snapshots")
			result.Warnings = append(result.Warnings, err.Error())
		}
	}
	for _, snap := range snapshots {
		if snap.Status != collect.StatusSuccess {
			continue
		}
		value, _ := out.Get(snap.Resource)
		if err := s.cache.SetLatest(ctx, dev.IP, snap.Resource, cachedFacts{Facts: value, CollectedAt: start}); err != nil {
			log.WithError(err).Warn("Failed to cache latest facts")
		}
	}

	if firstErr != nil {
		return fail(firstErr)
	}
	result.Success = true
	result.DurationMS = time.Since(start).Milliseconds()
	s.metrics.ObserveDeviceDuration(platform, time.Since(start))
	log.WithField("resources", out.Resources()).Info("Device gather finished")
	return result
}

// storeOutputs 保存原始回显，返回命令 -> 对象 URI
func (s *FactService) storeOutputs(ctx context.Context, taskID, deviceIP string, start time.Time, outputs map[string]string, result *DeviceResult) collect.RawStorePaths {
	paths := make(collect.RawStorePaths, len(outputs))
	for cmd, output := range outputs {
		obj, err := s.storage.Write(ctx, StorageMeta{TaskID: taskID, DeviceIP: deviceIP, Time: start, Name: cmd}, []byte(output), "")
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			if obj.URI == "" {
				continue
			}
		}
		paths[cmd] = obj.URI
		result.RawObjects = append(result.RawObjects, obj)
	}
	return paths
}

// Latest 查询设备某资源最新事实：先查缓存，未命中再查数据库
func (s *FactService) Latest(ctx context.Context, deviceIP, resource string) (*LatestResult, error) {
	if strings.TrimSpace(deviceIP) == "" {
		return nil, fmt.Errorf("%w: device_ip is required", ErrInvalidRequest)
	}
	if resource == "" {
		resource = firstOr(s.config.Facts.Resources, "l2_interfaces")
	}

	var cached cachedFacts
	err := s.cache.GetLatest(ctx, deviceIP, resource, &cached)
	if err == nil {
		return &LatestResult{DeviceIP: deviceIP, Resource: resource, Source: "cache", Facts: cached.Facts}, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.WithError(err).Warn("Fact cache lookup failed")
	}

	if database.GetDB() == nil {
		return nil, database.ErrSnapshotNotFound
	}
	snap, err := database.LatestSnapshot(deviceIP, resource)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if snap.Facts != "" {
		if err := json.Unmarshal([]byte(snap.Facts), &value); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
	}
	return &LatestResult{DeviceIP: deviceIP, Resource: resource, Source: "database", Facts: value}, nil
}

// Stop 取消运行中的任务并关闭连接池
func (s *FactService) Stop() error {
	s.mutex.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mutex.Unlock()
	return s.sshPool.Close()
}

// GetStats 服务统计
func (s *FactService) GetStats() map[string]interface{} {
	s.mutex.RLock()
	running := len(s.running)
	s.mutex.RUnlock()
	return map[string]interface{}{
		"running_tasks": running,
		"ssh_pool":      s.sshPool.Stats(),
		"database":      database.GetStats(),
		"platforms":     collect.Platforms(),
	}
}

func (s *FactService) plugin(platform string) (collect.CollectPlugin, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	p, ok := collect.Lookup(platform)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
	return p, nil
}

// resources 请求未指定资源时取配置默认值，配置也为空时取平台全部资源
func (s *FactService) resources(plugin collect.CollectPlugin, requested []string) []string {
	if len(requested) == 0 {
		requested = s.config.Facts.Resources
	}
	if len(requested) == 0 {
		return plugin.Resources()
	}
	return requested
}

func (s *FactService) addRunning(taskID string, cancel context.CancelFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.running[taskID] = cancel
}

func (s *FactService) removeRunning(taskID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.running, taskID)
}

func itemCount(v interface{}) int {
	switch t := v.(type) {
	case []map[string]interface{}:
		return len(t)
	case []interface{}:
		return len(t)
	case nil:
		return 0
	default:
		return 1
	}
}

func firstOr(list []string, def string) string {
	if len(list) > 0 {
		return list[0]
	}
	return def
}

// recordingConnection 执行命令、规整回显并记录原始输出
type recordingConnection struct {
	client   *ssh.Client
	deviceIP string
	filter   util.LineFilter

	mu      sync.Mutex
	outputs map[string]string
	broken  bool
}

func (c *recordingConnection) Get(ctx context.Context, command string) (string, error) {
	raw, err := c.client.Get(ctx, command)
	if err != nil {
		c.mu.Lock()
		c.broken = true
		c.mu.Unlock()
		return "", err
	}
	c.mu.Lock()
	c.outputs[command] = raw
	c.mu.Unlock()
	logger.DebugCommandOutput(c.deviceIP, command, raw, 5)
	return util.NormalizeOutput([]byte(raw), c.filter), nil
}

func (c *recordingConnection) snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}
