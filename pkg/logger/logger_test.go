package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmx-collector/pkg/config"
	"github.com/jmx-collector/pkg/logger"
)

// fatalHook 捕获 fatal 日志（不退出进程）
type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	h.called = true
}

func TestLoggerLevels(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ZapLogConfig{
		Level:  "debug",
		Format: "console",
		Path:   dir,
	}

	l, err := logger.InitLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, logger.GetGlobalLogger())

	logger.SetDefaultCollector("jmx-app01")
	assert.Equal(t, "jmx-app01", logger.GetDefaultCollector())

	logger.Debug("debug msg")
	logger.Info("info msg", zap.String("server", "app01"))
	logger.Warn("warn msg")
	logger.Error("error msg")

	assert.Panics(t, func() { logger.Panic("panic msg") })

	hook := &fatalHook{}
	logger.GetGlobalLogger().WithOptions(zap.WithFatalHook(hook)).Fatal("fatal msg")
	assert.True(t, hook.called)

	assert.NoError(t, logger.Sync())

	files, err := filepath.Glob(filepath.Join(dir, "jmx-collector-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"info msg"`)
	assert.Contains(t, string(data), `"server":"app01"`)
	assert.Contains(t, string(data), `"collector":"jmx-app01"`)
}
