// Package audited 提供审计信封：嵌入到需要审计的实体中，记录创建/修改人、修改时间、
// 软删除标记与单调递增的版本号。
//
// 信封字段只能通过受控方法修改（MarkUpdated、MarkDeleted、SyncFrom）。映射代码通过
// ScanDest/AfterScan 从行中装载信封，通过 ColumnValues 写出列值。
// 提交前由 data/audit.Validator 对照装载时的原始值检查信封的每一次变化。
package audited

import "time"

// System 表示系统发起的变更（无操作人）。
var System *int64

// Actor 返回操作人 ID 的指针。
func Actor(id int64) *int64 { return &id }

// IRecord 审计记录能力接口。嵌入 Envelope 的类型自动满足。
type IRecord interface {
	AuditEnvelope() *Envelope
}

// Envelope 审计信封。
//
// 不变式：
//   - version ≥ 1，每次受控修改 +1；
//   - deleted 只能由 false 变为 true；
//   - createdAt/createdBy 构造后不变；
//   - updatedAt/updatedBy 为空当且仅当 version == 1 且未删除。
type Envelope struct {
	createdAt time.Time
	createdBy *int64
	updatedAt *time.Time
	updatedBy *int64
	deleted   bool
	version   int64

	bypassValidation bool
}

// NewEnvelope 以当前 UTC 时间创建信封，version 为 1。createdBy 为 nil 表示系统创建。
func NewEnvelope(createdBy *int64) Envelope {
	return NewEnvelopeAt(createdBy, time.Now())
}

// NewEnvelopeAt 以指定时间创建信封。
func NewEnvelopeAt(createdBy *int64, at time.Time) Envelope {
	return Envelope{
		createdAt: at.UTC(),
		createdBy: clonePtr(createdBy),
		version:   1,
	}
}

func (e *Envelope) AuditEnvelope() *Envelope { return e }

// MarkUpdated 记录一次修改：updatedAt 为当前时间，updatedBy 为 actor，version+1。
func (e *Envelope) MarkUpdated(actor *int64) {
	e.MarkUpdatedAt(actor, time.Now())
}

// MarkUpdatedAt 同 MarkUpdated，使用指定时间。
func (e *Envelope) MarkUpdatedAt(actor *int64, at time.Time) {
	at = at.UTC()
	e.updatedAt = &at
	e.updatedBy = clonePtr(actor)
	e.version++
}

// MarkDeleted 软删除：在 MarkUpdated 的基础上置 deleted = true。
//
// 对已删除的记录再次调用仍会推进版本号；是否拒绝由校验器的
// RejectMutationAfterDelete 选项决定。
func (e *Envelope) MarkDeleted(actor *int64) {
	e.MarkDeletedAt(actor, time.Now())
}

// MarkDeletedAt 同 MarkDeleted，使用指定时间。
func (e *Envelope) MarkDeletedAt(actor *int64, at time.Time) {
	e.MarkUpdatedAt(actor, at)
	e.deleted = true
}

// SyncFrom 复制 source 的修改信息、删除标记与版本号，并让本记录跳过下一次提交校验。
//
// 用于由另一条记录派生新记录（例如快照、迁移），创建信息保持不变。source 为 nil 时不做任何事。
func (e *Envelope) SyncFrom(source IRecord) {
	if source == nil {
		return
	}
	src := source.AuditEnvelope()
	if src == nil {
		return
	}
	e.updatedAt = clonePtr(src.updatedAt)
	e.updatedBy = clonePtr(src.updatedBy)
	e.deleted = src.deleted
	e.version = src.version
	e.bypassValidation = true
}

// ResetValidationBypass 清除 SyncFrom 设置的跳过标记，保存成功后由校验器调用。
func (e *Envelope) ResetValidationBypass() { e.bypassValidation = false }

func (e *Envelope) CreatedAt() time.Time     { return e.createdAt }
func (e *Envelope) CreatedBy() *int64        { return clonePtr(e.createdBy) }
func (e *Envelope) UpdatedAt() *time.Time    { return clonePtr(e.updatedAt) }
func (e *Envelope) UpdatedBy() *int64        { return clonePtr(e.updatedBy) }
func (e *Envelope) IsDeleted() bool          { return e.deleted }
func (e *Envelope) Version() int64           { return e.version }
func (e *Envelope) BypassesValidation() bool { return e.bypassValidation }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
