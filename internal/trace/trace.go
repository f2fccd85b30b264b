// Package trace 在 context 中传递 trace ID，日志每行带 trace=id 字段便于排查。
package trace

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey int

const traceIDKey ctxKey = 0

// 日志文件滚动参数
const (
	logFileMaxSizeMB  = 50
	logFileMaxBackups = 5
	logFileMaxAgeDays = 14
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// NewTraceID 取 uuid 前 8 位，足够区分单进程内的各次运行。
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Setup 配置全局 logger：控制台输出到 stderr，file 非空时同时写入按大小滚动的日志文件。
func Setup(level, file string) error {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	if file != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
		})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

func event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	return e.Str("trace", id)
}

// Log 打 info 日志，格式与 fmt.Printf 一致。
func Log(ctx context.Context, format string, args ...interface{}) {
	event(ctx, log.Info()).Msgf(format, args...)
}

func Debug(ctx context.Context, format string, args ...interface{}) {
	event(ctx, log.Debug()).Msgf(format, args...)
}

func Warn(ctx context.Context, format string, args ...interface{}) {
	event(ctx, log.Warn()).Msgf(format, args...)
}

func Error(ctx context.Context, format string, args ...interface{}) {
	event(ctx, log.Error()).Msgf(format, args...)
}
