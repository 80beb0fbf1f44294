package audit

import (
	"fmt"

	apperrors "auditbase/errors"
)

// ErrAuditBypassed 记录被修改但版本号未推进（绕过了 MarkUpdated/MarkDeleted）。
var ErrAuditBypassed error = &sentinel{"audit: record modified without a sanctioned mutation"}

type sentinel struct{ msg string }

func (e *sentinel) Error() string                  { return e.msg }
func (e *sentinel) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeValidation }

// 校验失败原因
const (
	ReasonVersionNotAdvanced  = "version_not_advanced"
	ReasonModifiedAfterDelete = "modified_after_delete"
	ReasonCreationChanged     = "creation_changed"
	ReasonDeleteReverted      = "delete_reverted"
	ReasonEnvelopeInvalid     = "envelope_invalid"
)

// ValidationError 提交前校验失败，整个保存被中止，未写入任何数据。
type ValidationError struct {
	EntityType string
	Key        any
	Reason     string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonModifiedAfterDelete:
		return fmt.Sprintf("audit: %s(%v) is deleted and cannot be modified", e.EntityType, e.Key)
	case ReasonCreationChanged:
		return fmt.Sprintf("audit: %s(%v) creation info is immutable", e.EntityType, e.Key)
	case ReasonDeleteReverted:
		return fmt.Sprintf("audit: %s(%v) is soft-deleted and cannot be restored", e.EntityType, e.Key)
	case ReasonEnvelopeInvalid:
		return fmt.Sprintf("audit: %s(%v) has an inconsistent audit envelope", e.EntityType, e.Key)
	default:
		return fmt.Sprintf("audit: %s(%v) must be updated using MarkUpdated or MarkDeleted before saving changes",
			e.EntityType, e.Key)
	}
}

func (e *ValidationError) Is(target error) bool { return target == ErrAuditBypassed }

func (e *ValidationError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeValidation }
