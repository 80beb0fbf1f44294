package orm

import (
	stderrors "errors"
	"fmt"

	apperrors "auditbase/errors"
)

// ErrNotFound First 未命中任何记录。
var ErrNotFound error = &codedSentinel{msg: "orm: record not found", code: apperrors.ErrCodeNotFound}

// ErrConcurrencyConflict 受并发令牌保护的语句未影响任何行。
var ErrConcurrencyConflict error = &codedSentinel{msg: "orm: concurrency conflict", code: apperrors.ErrCodeConcurrency}

type codedSentinel struct {
	msg  string
	code apperrors.ErrorCode
}

func (e *codedSentinel) Error() string                  { return e.msg }
func (e *codedSentinel) ErrorCode() apperrors.ErrorCode { return e.code }

// ConcurrencyConflictError 记录在提交期间被其他写入者修改或删除。
// 整个保存已回滚。
type ConcurrencyConflictError struct {
	EntityType string
	Key        any
	Token      string
	Expected   any
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("orm: %s(%v) was modified or deleted concurrently", e.EntityType, e.Key)
	}
	return fmt.Sprintf("orm: %s(%v) was modified or deleted concurrently (expected %s=%v)",
		e.EntityType, e.Key, e.Token, e.Expected)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) ErrorCode() apperrors.ErrorCode {
	return apperrors.ErrCodeConcurrency
}

// StructuralError 模型配置错误（缺列、重复注册、非法标识符等），应在启动期暴露。
type StructuralError struct {
	EntityType string
	Reason     string
}

func (e *StructuralError) Error() string {
	if e.EntityType == "" {
		return "orm: invalid model: " + e.Reason
	}
	return fmt.Sprintf("orm: invalid model %s: %s", e.EntityType, e.Reason)
}

func (e *StructuralError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeStructural }

func structural(entityType, format string, args ...any) error {
	return &StructuralError{EntityType: entityType, Reason: fmt.Sprintf(format, args...)}
}

// IsStructural 判断错误链中是否包含 StructuralError。
func IsStructural(err error) bool {
	var se *StructuralError
	return stderrors.As(err, &se)
}
