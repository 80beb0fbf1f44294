package audited

import (
	"fmt"
	"time"

	apperrors "auditbase/errors"
)

// Snapshot 信封的只读视图，字段顺序与列一致：
// created_at, created_by_user_id, updated_at, updated_by_user_id, deleted, version。
type Snapshot struct {
	CreatedAt time.Time
	CreatedBy *int64
	UpdatedAt *time.Time
	UpdatedBy *int64
	Deleted   bool
	Version   int64
}

// Snapshot 导出信封当前状态（不含跳过校验标记）。修改返回值不影响信封。
func (e *Envelope) Snapshot() Snapshot {
	return Snapshot{
		CreatedAt: e.createdAt,
		CreatedBy: clonePtr(e.createdBy),
		UpdatedAt: clonePtr(e.updatedAt),
		UpdatedBy: clonePtr(e.updatedBy),
		Deleted:   e.deleted,
		Version:   e.version,
	}
}

// ColumnValues 返回按列顺序的列值，nil 指针写入 NULL。
func (e *Envelope) ColumnValues() []any {
	return []any{e.createdAt.UTC(), nullable(e.createdBy), nullableTime(e.updatedAt), nullable(e.updatedBy), e.deleted, e.version}
}

// ScanDest 返回按列顺序的扫描目标，供映射代码从行中装载信封。
//
// 扫描完成后必须调用 AfterScan。
func (e *Envelope) ScanDest() []any {
	return []any{&e.createdAt, &e.createdBy, &e.updatedAt, &e.updatedBy, &e.deleted, &e.version}
}

// AfterScan 完成装载：时间统一为 UTC，清除跳过标记，并检查信封不变式。
func (e *Envelope) AfterScan() error {
	e.createdAt = e.createdAt.UTC()
	if e.updatedAt != nil {
		t := e.updatedAt.UTC()
		e.updatedAt = &t
	}
	e.bypassValidation = false
	return e.Validate()
}

// Validate 检查信封不变式：
//   - version ≥ 1 且 created_at 非零；
//   - updated_at 为空当且仅当 version == 1 且未删除；
//   - updated_at 为空时 updated_by 也为空。
func (e *Envelope) Validate() error {
	var reason string
	switch {
	case e.version < 1:
		reason = "version must be at least 1"
	case e.createdAt.IsZero():
		reason = "created_at is not set"
	case e.updatedAt == nil && (e.version > 1 || e.deleted):
		reason = "updated_at is missing on a modified record"
	case e.updatedAt != nil && e.version == 1 && !e.deleted:
		reason = "updated_at is set on an unmodified record"
	case e.updatedAt == nil && e.updatedBy != nil:
		reason = "updated_by is set without updated_at"
	default:
		return nil
	}
	return apperrors.NewError(apperrors.ErrCodeValidation, fmt.Sprintf("audit envelope: %s", reason)).
		WithDetails(map[string]any{
			"version": e.version,
			"deleted": e.deleted,
		})
}

func nullable(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
