package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jmx-collector/pkg/config"
	"github.com/jmx-collector/pkg/goid"
)

var (
	baseLogger       = zap.NewNop()
	defaultCollector string
	loggerInitOnce   sync.Once
	mu               sync.RWMutex
)

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志：stdout（console 或 json）+ 按天切割的 json 文件
// 只生效一次，重复调用返回已有实例
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	var err error
	loggerInitOnce.Do(func() {
		level := parseLevel(cfg.Level)

		if err = os.MkdirAll(cfg.Path, 0o755); err != nil {
			return
		}

		rotateOpts := []rotatelogs.Option{
			rotatelogs.WithRotationTime(24 * time.Hour),
		}
		if cfg.MaxSize > 0 {
			rotateOpts = append(rotateOpts, rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024))
		}
		// max_backup 与 max_age 不能同时设置
		if cfg.MaxBackup > 0 {
			rotateOpts = append(rotateOpts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
		} else if cfg.MaxAge > 0 {
			rotateOpts = append(rotateOpts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
		}
		writer, wErr := rotatelogs.New(filepath.Join(cfg.Path, "jmx-collector-%Y%m%d.log"), rotateOpts...)
		if wErr != nil {
			err = wErr
			return
		}

		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "timestamp"
		jsonCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
		}
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		jsonEncoder := zapcore.NewJSONEncoder(jsonCfg)

		stdoutEncoder := jsonEncoder
		if cfg.Format == "console" {
			stdoutEncoder = consoleEncoder()
		}

		core := zapcore.NewTee(
			zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(jsonEncoder, zapcore.AddSync(writer), level),
		)

		mu.Lock()
		baseLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return GetGlobalLogger(), nil
}

func consoleEncoder() zapcore.Encoder {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.ConsoleSeparator = " "
	// 控制台彩色时间
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
	}
	encCfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var s string
		switch level {
		case zapcore.DebugLevel:
			s = "\033[36mDEBUG\033[0m"
		case zapcore.InfoLevel:
			s = "\033[32mINFO \033[0m"
		case zapcore.WarnLevel:
			s = "\033[33mWARN \033[0m"
		case zapcore.ErrorLevel:
			s = "\033[31mERROR\033[0m"
		default:
			s = "\033[35m" + level.CapitalString() + "\033[0m"
		}
		enc.AppendString(s)
	}
	// Caller 两级路径
	encCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// GetGlobalLogger 未初始化时返回 Nop logger
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// Named 供组件使用的子 logger（带 component 字段）
func Named(component string) *zap.Logger {
	return GetGlobalLogger().With(zap.String("component", component))
}

func SetDefaultCollector(collector string) {
	mu.Lock()
	defer mu.Unlock()
	defaultCollector = collector
}

func GetDefaultCollector() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultCollector
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetGlobalLogger().WithOptions(zap.AddCallerSkip(2))
	fields = append(fields,
		zap.String("collector", GetDefaultCollector()),
		zap.String("goid", strconv.FormatUint(goid.GetGID(), 10)),
	)
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }
func Panic(msg string, fields ...zapcore.Field) { log(zap.PanicLevel, msg, fields...) }
func Fatal(msg string, fields ...zapcore.Field) { log(zap.FatalLevel, msg, fields...) }

func Sync() error {
	err := GetGlobalLogger().Sync()
	// stdout 为终端/管道时 Sync 会返回 EINVAL/ENOTTY，忽略
	if err != nil && (strings.Contains(err.Error(), "invalid argument") || strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
