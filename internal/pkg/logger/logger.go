package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数（由 config.LogConfig 转换而来）
type LogOption struct {
	Format   string // 日志格式："console" 或 "json"，默认 console
	LogDir   string // 日志目录，为空时仅输出到 stdout
	Level    string // 日志级别：debug / info / warn / error，默认 info
	Compress bool   // 是否压缩轮转出的旧日志文件
}

var (
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// 未显式 Init 时兜底输出到 stdout（主要服务于单元测试）
	l, _ := build(LogOption{})
	replace(l)
}

// Init 按配置初始化全局日志器，并把 go-zero 的 logx 重定向到同一个 zap 实例，
// 保证两套日志接口落到相同的输出与格式。
func Init(opt LogOption) error {
	l, err := build(opt)
	if err != nil {
		return err
	}
	replace(l)
	logx.SetWriter(newZapWriter(l))
	logx.DisableStat()
	return nil
}

func build(opt LogOption) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(opt.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
	}

	var encoder zapcore.Encoder
	switch opt.Format {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opt.Format)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "cranker.log"),
			MaxSize:    128, // 单位 MB
			MaxBackups: 10,
			MaxAge:     7, // 单位：天
			Compress:   opt.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	return zap.New(core, zap.AddCaller()), nil
}

func replace(l *zap.Logger) {
	base = l
	// 包级函数多一层封装，caller 需要上移一层
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }
func Infof(format string, args ...any)  { sugar.Infof(format, args...) }
func Warnf(format string, args ...any)  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...any) { sugar.Errorf(format, args...) }
func Fatalf(format string, args ...any) { sugar.Fatalf(format, args...) }

// Sync 刷出缓冲日志，进程退出前调用。
func Sync() {
	_ = base.Sync()
}
