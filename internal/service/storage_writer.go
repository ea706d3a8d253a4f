package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

// StorageWriter 原始回显与事实 JSON 的存储写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, content []byte, contentType string) (StoredObject, error)
}

// StorageMeta 写入元数据，决定对象路径
type StorageMeta struct {
	TaskID   string
	DeviceIP string
	// Time 设备采集开始时间，同一设备的文件落在同一目录
	Time time.Time
	// Name 文件名，不含扩展名时按 .txt 保存
	Name string
}

// StoredObject 存储的对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

const defaultContentType = "text/plain; charset=utf-8"

// NewStorageWriter 根据配置创建写入器：minio 后端失败时回退本地
func NewStorageWriter(cfg config.StorageConfig) StorageWriter {
	dw := &DelegatingStorageWriter{backend: cfg.Backend, local: &LocalStorageWriter{cfg: cfg}}
	if cfg.Backend == "minio" {
		dw.minio = initMinioWriter(cfg)
	}
	return dw
}

// DelegatingStorageWriter 按后端路由写入
type DelegatingStorageWriter struct {
	backend string
	local   *LocalStorageWriter
	minio   *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta StorageMeta, content []byte, contentType string) (StoredObject, error) {
	if w.backend != "minio" {
		return w.local.Write(ctx, meta, content, contentType)
	}
	if w.minio == nil {
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		obj, lerr := w.local.Write(ctx, meta, content, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
		}
		// 返回对象同时返回预警错误，上层记录但不中断流程
		return obj, fmt.Errorf("minio client not initialized; wrote to local instead")
	}
	obj, err := w.minio.Write(ctx, meta, content, contentType)
	if err != nil {
		logger.WithError(err).Warn("MinIO write failed; falling back to local")
		objLocal, lerr := w.local.Write(ctx, meta, content, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
		}
		return objLocal, fmt.Errorf("minio write failed: %w; fell back to local successfully", err)
	}
	return obj, nil
}

// objectParts 对象相对路径：prefix / device / date_time / taskID / filename
func objectParts(prefix string, meta StorageMeta) ([]string, string) {
	parts := make([]string, 0, 4)
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, slug(meta.DeviceIP))
	ts := meta.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	parts = append(parts, ts.Format("20060102_150405"))
	if tid := strings.TrimSpace(meta.TaskID); tid != "" {
		parts = append(parts, tid)
	}

	filename := slug(meta.Name)
	if !strings.Contains(filename, ".") {
		filename += ".txt"
	}
	return parts, filename
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg config.StorageConfig
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta StorageMeta, content []byte, contentType string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data/facts"
	}
	parts, filename := objectParts(w.cfg.Prefix, meta)
	dirPath := filepath.Join(append([]string{baseDir}, parts...)...)

	if w.cfg.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}
	fullPath := filepath.Join(dirPath, filename)
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(content)),
		Checksum:    checksum(content),
		ContentType: contentType,
	}, nil
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	cfg      config.StorageConfig
	client   *minio.Client
	endpoint string

	mu            sync.Mutex
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 写入器（带超时的传输层，初始化时校验一次 bucket）
func initMinioWriter(cfg config.StorageConfig) *MinioStorageWriter {
	host := strings.TrimSpace(cfg.Minio.Host)
	port := cfg.Minio.Port
	if host == "" || port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure:    cfg.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.WithError(err).Error("MinIO client initialization failed")
		return nil
	}

	w := &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
	if strings.TrimSpace(cfg.Minio.Bucket) == "" {
		logger.Warn("MinIO bucket not configured")
		return w
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.ensureBucket(ctx, 0); err != nil {
		logger.WithError(err).Warn("MinIO bucket ensure at init failed")
	}
	return w
}

// Write 将内容写入 MinIO
func (w *MinioStorageWriter) Write(ctx context.Context, meta StorageMeta, content []byte, contentType string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, fmt.Errorf("minio client not initialized")
	}
	bucket := strings.TrimSpace(w.cfg.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}

	parts, filename := objectParts(w.cfg.Prefix, meta)
	objectName := path.Join(append(parts, filename)...)
	if contentType == "" {
		contentType = defaultContentType
	}

	// 写入前快速连通性探测
	if err := w.fastConnectivityCheck(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio connectivity failed to %s: %w", w.endpoint, err)
	}
	if err := w.ensureBucket(ctx, 2); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	// 带重试的对象写入（指数退避）
	var lastErr error
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		attemptCtx, cancel := attemptContext(ctx, 2*d)
		_, err := w.client.PutObject(attemptCtx, bucket, objectName, bytes.NewReader(content), int64(len(content)),
			minio.PutObjectOptions{ContentType: contentType})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return StoredObject{}, ctx.Err()
		case <-time.After(d):
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(content)),
		Checksum:    checksum(content),
		ContentType: contentType,
	}, nil
}

// fastConnectivityCheck 使用 TCP 直连做快速连通性校验
func (w *MinioStorageWriter) fastConnectivityCheck(parent context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(parent, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}

// ensureBucket 校验并创建 bucket，成功一次后不再检查
func (w *MinioStorageWriter) ensureBucket(parent context.Context, retries int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}
	bucket := strings.TrimSpace(w.cfg.Minio.Bucket)

	var lastErr error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i) * time.Second)
		}
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, bucket)
		if err == nil && !exists {
			err = w.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		}
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		w.bucketEnsured = true
		return nil
	}
	return lastErr
}

// attemptContext 构造限时上下文，尊重父上下文的剩余截止时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		remain := time.Until(deadline)
		if remain > time.Second && prefer < remain {
			return context.WithTimeout(parent, prefer)
		}
		if remain > time.Second {
			return context.WithTimeout(parent, remain-time.Second)
		}
		return context.WithTimeout(parent, time.Second)
	}
	return context.WithTimeout(parent, prefer)
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "|", "_").Replace(s)
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
