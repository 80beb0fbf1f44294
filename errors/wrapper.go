package errors

import (
	"context"
	"fmt"
	"runtime"

	"auditbase/logging"
)

// Wrap 包装错误，添加错误码和上下文信息
// 建议：在 Session/Service 边界使用
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	// 避免重复记录，使用Debug级别
	logging.GetLogger().Debug(ctx, fmt.Sprintf("wrap error: %s (at %s:%d)", msg, file, line))

	return wrapped
}

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)
	wrapped := WrapError(err, code, msg)

	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)

	logging.GetLogger().Warn(ctx, msg, allFields...)

	return wrapped
}

// WrapDatabaseError 包装数据库错误
//
// 已分类的错误（NotFound、并发冲突、ctx 取消等）按 Normalize 的结果返回，
// 其余视为驱动/SQL 错误，包装为 ErrCodeDatabase 并记录警告。
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	if n := Normalize(err); n != err {
		return n
	}
	if _, ok := err.(IError); ok {
		return err
	}

	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation),
		logging.String("operation", operation),
	)
}

// NewInvalidInput 创建参数错误
func NewInvalidInput(format string, args ...any) error {
	return NewError(ErrCodeInvalidInput, fmt.Sprintf(format, args...))
}
