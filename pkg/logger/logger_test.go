package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONFormat(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Format: "json", Output: "console"}))

	var buf bytes.Buffer
	SetOutput(&buf)
	WithField("device_ip", "10.0.0.1").Debug("gather start")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gather start", entry["msg"])
	assert.Equal(t, "10.0.0.1", entry["device_ip"])
	assert.Equal(t, "debug", entry["level"])
}

func TestInitInvalidLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "verbose", Output: "console"}))

	var buf bytes.Buffer
	SetOutput(&buf)
	Debug("hidden")
	assert.Empty(t, buf.String(), "info 级别下不输出 debug")
	Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init(Config{Level: "info", Output: "file", FilePath: path, MaxSize: 1}))

	Infof("written to %s", "file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	// 重新初始化时关闭旧文件
	require.NoError(t, Init(Config{Level: "info", Output: "console"}))
}

func TestInitErrors(t *testing.T) {
	assert.Error(t, Init(Config{Output: "file"}), "file 输出必须指定路径")
	assert.Error(t, Init(Config{Output: "syslog"}))
}
