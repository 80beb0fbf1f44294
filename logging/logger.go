// Package logging 提供统一的日志接口抽象
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String 返回级别标签
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel 解析级别字符串（大小写不敏感），无法识别时返回 InfoLevel
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger 日志接口
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// WithFields 添加字段，返回新的Logger
	WithFields(fields ...Field) Logger
}

// Field 日志字段
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Duration 以 time.Duration 作为字段值，格式化输出
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// StdOption 配置 StdLogger
type StdOption func(*StdLogger)

// WithLevel 设置最低输出级别
func WithLevel(level Level) StdOption {
	return func(l *StdLogger) { l.level = level }
}

// WithOutput 设置输出目标（默认 os.Stderr）
func WithOutput(w io.Writer) StdOption {
	return func(l *StdLogger) {
		if w != nil {
			l.out = log.New(w, "", log.LstdFlags)
		}
	}
}

// StdLogger 标准库log实现
type StdLogger struct {
	prefix string
	level  Level
	out    *log.Logger
	fields []Field
}

// NewStdLogger 创建标准库Logger，默认级别为 InfoLevel
func NewStdLogger(prefix string, opts ...StdOption) *StdLogger {
	l := &StdLogger{
		prefix: prefix,
		level:  InfoLevel,
		out:    log.New(os.Stderr, "", log.LstdFlags),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *StdLogger) format(msg string, fields ...Field) string {
	var sb strings.Builder
	if l.prefix != "" {
		sb.WriteString(l.prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(msg)
	for _, f := range l.fields {
		sb.WriteString(" " + f.Key + "=" + formatValue(f.Value))
	}
	for _, f := range fields {
		sb.WriteString(" " + f.Key + "=" + formatValue(f.Value))
	}
	return sb.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case *int64:
		if val == nil {
			return "<nil>"
		}
		return fmt.Sprint(*val)
	default:
		return fmt.Sprint(val)
	}
}

func (l *StdLogger) write(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	l.out.Println("["+level.String()+"]", l.format(msg, fields...))
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(DebugLevel, msg, fields)
}

func (l *StdLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(InfoLevel, msg, fields)
}

func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(WarnLevel, msg, fields)
}

func (l *StdLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(ErrorLevel, msg, fields)
}

func (l *StdLogger) WithFields(fields ...Field) Logger {
	newFields := make([]Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)
	return &StdLogger{
		prefix: l.prefix,
		level:  l.level,
		out:    l.out,
		fields: newFields,
	}
}

// NoopLogger 空日志实现（用于测试）
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}
func (l *NoopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (l *NoopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (l *NoopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (l *NoopLogger) WithFields(fields ...Field) Logger                      { return l }

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewStdLogger("[auditbase]")
)

// SetLogger 设置全局Logger，传入 nil 时忽略
func SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetLogger 获取全局Logger
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Component 返回带 component 字段的全局 Logger 派生实例
func Component(name string) Logger {
	return GetLogger().WithFields(String("component", name))
}
