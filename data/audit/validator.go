package audit

import (
	"context"

	"auditbase/data/orm"
	"auditbase/domain/audited"
	"auditbase/logging"
)

// Validator 提交前校验审计信封。
//
// 状态为 Modified 的审计记录：版本号必须大于装载时的值，deleted 不能由 true 变回 false，
// 创建信息不能改变，信封本身满足不变式。新增记录只检查信封不变式。
// SyncFrom 派生的记录跳过一次检查。
//
// 同时实现 orm.ISaveChangesInterceptor 与 orm.ISavedChangesInterceptor：
// 保存前检查，保存成功后清除会话内所有跳过标记。Validator 不持有会话状态，
// 可被多个会话共享。
type Validator struct {
	rejectAfterDelete bool
	logger            logging.Logger
	metrics           *Metrics
}

// ValidatorOption 配置 Validator。
type ValidatorOption func(*Validator)

// RejectMutationAfterDelete 拒绝修改已软删除（原始 deleted = true）的记录。
func RejectMutationAfterDelete() ValidatorOption {
	return func(v *Validator) { v.rejectAfterDelete = true }
}

func WithLogger(logger logging.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) ValidatorOption {
	return func(v *Validator) { v.metrics = m }
}

// NewValidator 创建校验器
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{logger: logging.Component("audit.validator")}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// WithValidation 作为 Context 选项注册校验器，对该 Context 创建的所有会话生效。
func WithValidation(opts ...ValidatorOption) orm.ContextOption {
	return orm.WithInterceptors(NewValidator(opts...))
}

// UseValidation 仅为单个会话注册校验器。
func UseValidation(s *orm.Session, opts ...ValidatorOption) *Validator {
	v := NewValidator(opts...)
	// Validator 实现了两个拦截器接口，AddInterceptor 不会失败
	_ = s.AddInterceptor(v)
	return v
}

// SavingChanges 检查全部条目，遇到第一条违规记录即返回 *ValidationError。
func (v *Validator) SavingChanges(ctx context.Context, s *orm.Session) error {
	for _, e := range s.Entries() {
		if err := v.check(e); err != nil {
			v.metrics.validationFailed(err.EntityType, err.Reason)
			v.logger.Warn(ctx, "audit validation failed",
				logging.String("entity_type", err.EntityType),
				logging.Any("key", err.Key),
				logging.String("reason", err.Reason),
				logging.String("session", s.ID()))
			return err
		}
	}
	return nil
}

// Check 校验单个条目，供不经过 Session 的调用方使用。
func (v *Validator) Check(e *orm.Entry) error {
	if err := v.check(e); err != nil {
		return err
	}
	return nil
}

func (v *Validator) check(e *orm.Entry) *ValidationError {
	if e.State() != orm.Modified && e.State() != orm.Added {
		return nil
	}
	rec, ok := e.Entity().(audited.IRecord)
	if !ok {
		return nil
	}
	env := rec.AuditEnvelope()
	if env == nil || env.BypassesValidation() {
		return nil
	}

	fail := func(reason string) *ValidationError {
		return &ValidationError{EntityType: e.EntityType(), Key: e.Key(), Reason: reason}
	}
	if e.State() == orm.Added {
		if env.Validate() != nil {
			return fail(ReasonEnvelopeInvalid)
		}
		return nil
	}

	wasDeleted := e.OriginalValue(ColumnDeleted) == true
	if v.rejectAfterDelete && wasDeleted {
		return fail(ReasonModifiedAfterDelete)
	}
	before, _ := e.OriginalValue(ColumnVersion).(int64)
	if env.Version() <= before {
		return fail(ReasonVersionNotAdvanced)
	}
	if wasDeleted && !env.IsDeleted() {
		return fail(ReasonDeleteReverted)
	}
	if e.IsModified(ColumnCreatedAt) || e.IsModified(ColumnCreatedBy) {
		return fail(ReasonCreationChanged)
	}
	if env.Validate() != nil {
		return fail(ReasonEnvelopeInvalid)
	}
	return nil
}

// SavedChanges 保存成功后清除跳过标记：已写入的条目与会话内仍被跟踪的条目，
// 包括 SyncFrom 后列值未变、因此没有写入的记录。
func (v *Validator) SavedChanges(ctx context.Context, s *orm.Session, result orm.SaveResult) {
	for _, saved := range result.Entries {
		resetBypass(saved.Entity)
	}
	for _, e := range s.Entries() {
		resetBypass(e.Entity())
	}
}

func resetBypass(entity any) {
	if rec, ok := entity.(audited.IRecord); ok {
		if env := rec.AuditEnvelope(); env != nil {
			env.ResetValidationBypass()
		}
	}
}
