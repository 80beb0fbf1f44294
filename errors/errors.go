// Package errors 提供带错误码的应用错误类型，供 orm/audit 等包在边界处统一分类。
package errors

import (
	stdErrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCode 错误代码类型
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeCanceled     ErrorCode = "CANCELED"

	// ErrCodeValidation 提交前审计校验失败（记录被绕过受控方法修改）
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeConcurrency 并发令牌（version）不匹配
	ErrCodeConcurrency ErrorCode = "CONCURRENCY_ERROR"
	// ErrCodeStructural 模型配置错误，仅在启动/注册阶段出现
	ErrCodeStructural ErrorCode = "STRUCTURAL_ERROR"

	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeQueue    ErrorCode = "QUEUE_ERROR"
)

// IError 错误接口
type IError interface {
	error

	Code() ErrorCode
	Message() string
	Cause() error
	Details() map[string]any
	Stack() string

	// 是否为指定类型的错误
	Is(target error) bool

	WithDetails(details map[string]any) IError
	WithContext(key string, value any) IError
}

// ICoded 由领域/基础设施错误实现，声明自身对应的错误码，供 Normalize 使用。
type ICoded interface {
	error
	ErrorCode() ErrorCode
}

// AppError 应用错误实现
type AppError struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
	stack   string
}

// NewError 创建新错误
func NewError(code ErrorCode, message string) IError {
	return &AppError{
		code:    code,
		message: message,
		details: make(map[string]any),
		stack:   captureStack(),
	}
}

// WrapError 包装错误
func WrapError(err error, code ErrorCode, message string) IError {
	if err == nil {
		return nil
	}

	return &AppError{
		code:    code,
		message: message,
		cause:   err,
		details: make(map[string]any),
		stack:   captureStack(),
	}
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *AppError) Code() ErrorCode { return e.code }

func (e *AppError) Message() string { return e.message }

func (e *AppError) Cause() error { return e.cause }

// Details 获取错误详情
func (e *AppError) Details() map[string]any {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	return e.details
}

func (e *AppError) Stack() string { return e.stack }

// Is 同错误码的 AppError 视为同类；否则沿 cause 链比较
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}

	if appErr, ok := target.(*AppError); ok {
		return e.code == appErr.code
	}

	if e.cause != nil {
		return stdErrors.Is(e.cause, target)
	}

	return false
}

// Unwrap 解包错误（支持 errors.Unwrap）
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails 添加详情
func (e *AppError) WithDetails(details map[string]any) IError {
	newDetails := copyMap(e.details)
	for k, v := range details {
		newDetails[k] = v
	}

	return &AppError{
		code:    e.code,
		message: e.message,
		cause:   e.cause,
		details: newDetails,
		stack:   e.stack,
	}
}

// WithContext 添加上下文
func (e *AppError) WithContext(key string, value any) IError {
	newDetails := copyMap(e.details)
	newDetails[key] = value

	return &AppError{
		code:    e.code,
		message: e.message,
		cause:   e.cause,
		details: newDetails,
		stack:   e.stack,
	}
}

// 预定义错误变量
var (
	ErrInternal     = NewError(ErrCodeInternal, "internal error")
	ErrInvalidInput = NewError(ErrCodeInvalidInput, "invalid input")
	ErrNotFound     = NewError(ErrCodeNotFound, "record not found")
	ErrValidation   = NewError(ErrCodeValidation, "audit validation failed")
	ErrConcurrency  = NewError(ErrCodeConcurrency, "concurrency conflict")
	ErrStructural   = NewError(ErrCodeStructural, "invalid model configuration")
	ErrDatabase     = NewError(ErrCodeDatabase, "database error")
)

func IsNotFound(err error) bool { return IsErrorCode(err, ErrCodeNotFound) }

func IsValidation(err error) bool { return IsErrorCode(err, ErrCodeValidation) }

func IsConcurrency(err error) bool { return IsErrorCode(err, ErrCodeConcurrency) }

// IsErrorCode 检查是否为指定错误代码；同时识别实现 ICoded 的错误
func IsErrorCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// GetErrorCode 获取错误代码，无法识别时返回 ErrCodeInternal
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code
	}

	var coded ICoded
	if stdErrors.As(err, &coded) {
		return coded.ErrorCode()
	}

	return ErrCodeInternal
}

// captureStack 捕获堆栈信息
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var builder strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))

		if !more {
			break
		}
	}

	return builder.String()
}

func copyMap(original map[string]any) map[string]any {
	if original == nil {
		return make(map[string]any)
	}

	copied := make(map[string]any, len(original))
	for k, v := range original {
		copied[k] = v
	}

	return copied
}
