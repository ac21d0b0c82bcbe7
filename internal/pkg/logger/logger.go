// Package logger 封装了 zerolog 的全局初始化和带 trace_id 的上下文日志获取。
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 logger，所有服务在 main 的第一步调用。
func Init(level, service string) {
	InitWithWriter(os.Stdout, level, service)
}

// InitWithWriter 与 Init 相同，但允许指定输出（测试中使用）。
func InitWithWriter(w io.Writer, level, service string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(ParseLevel(level))

	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	zerolog.DefaultContextLogger = &zlog.Logger
}

// ParseLevel 解析配置中的日志级别，无法识别时回退到 info。
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Ctx 返回与 ctx 关联的 logger；如果 ctx 中带有有效的 span，会附加 trace_id 字段。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		withTrace := l.With().Str("trace_id", sc.TraceID().String()).Logger()
		return &withTrace
	}
	return l
}

// Since 是记录耗时字段的小工具。
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
