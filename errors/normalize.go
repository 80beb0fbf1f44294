package errors

import (
	"context"
	"database/sql"
	stdErrors "errors"
)

// Normalize 将 orm/audit 层的错误规范化为 AppError。
//
// 注意：
//   - 如果传入的 err 已经是 IError，则原样返回；
//   - 实现 ICoded 的错误（ValidationError、ConcurrencyConflictError、StructuralError 等）
//     按其声明的错误码包装，原始错误保留为 cause，errors.As 仍可取回具体类型；
//   - 未识别的错误保持原样，交由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(IError); ok {
		return err
	}

	var coded ICoded
	if stdErrors.As(err, &coded) {
		return WrapError(err, coded.ErrorCode(), defaultMessage(coded.ErrorCode()))
	}

	if stdErrors.Is(err, sql.ErrNoRows) {
		return WrapError(err, ErrCodeNotFound, "record not found")
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrCodeTimeout, "operation timed out")
	}
	if stdErrors.Is(err, context.Canceled) {
		return WrapError(err, ErrCodeCanceled, "operation canceled")
	}

	return err
}

func defaultMessage(code ErrorCode) string {
	switch code {
	case ErrCodeValidation:
		return ErrValidation.Message()
	case ErrCodeConcurrency:
		return ErrConcurrency.Message()
	case ErrCodeStructural:
		return ErrStructural.Message()
	case ErrCodeNotFound:
		return ErrNotFound.Message()
	case ErrCodeInvalidInput:
		return ErrInvalidInput.Message()
	default:
		return string(code)
	}
}
