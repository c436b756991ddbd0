package logger

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

// logx 的调用链比 zap 包级调用多三层
const callerSkipOffset = 3

// zapWriter 实现 logx.Writer，把 logx 的输出桥接到 zap。
type zapWriter struct {
	logger *zap.Logger
}

func newZapWriter(l *zap.Logger) logx.Writer {
	return &zapWriter{logger: l.WithOptions(zap.AddCallerSkip(callerSkipOffset))}
}

func (w *zapWriter) Alert(v any) {
	w.logger.Error(fmt.Sprint(v))
}

func (w *zapWriter) Close() error {
	return w.logger.Sync()
}

func (w *zapWriter) Debug(v any, fields ...logx.LogField) {
	w.logger.Debug(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w *zapWriter) Error(v any, fields ...logx.LogField) {
	w.logger.Error(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w *zapWriter) Info(v any, fields ...logx.LogField) {
	w.logger.Info(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w *zapWriter) Severe(v any) {
	w.logger.Fatal(fmt.Sprint(v))
}

func (w *zapWriter) Slow(v any, fields ...logx.LogField) {
	w.logger.Warn(fmt.Sprint(v), toZapFields(fields...)...)
}

func (w *zapWriter) Stack(v any) {
	w.logger.Error(fmt.Sprint(v), zap.Stack("stack"))
}

func (w *zapWriter) Stat(v any, fields ...logx.LogField) {
	// 运行指标类日志降为 debug，本服务是一次性进程，不需要周期统计
	w.logger.Debug(fmt.Sprint(v), toZapFields(fields...)...)
}

func toZapFields(fields ...logx.LogField) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
