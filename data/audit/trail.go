package audit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"auditbase/data/orm"
	"auditbase/domain/audited"
	"auditbase/logging"
)

// Trail 审计轨迹：保存成功后把审计实体的变更转换为 Record，写入 IStore 并推送给 IPublisher。
//
// Trail 运行在事务提交之后，存储或推送失败只记录日志与指标，不影响已完成的保存。
type Trail struct {
	store      IStore
	publishers []IPublisher
	logger     logging.Logger
	metrics    *Metrics
	now        func() time.Time
}

// TrailOption 配置 Trail。
type TrailOption func(*Trail)

// WithStore 设置审计记录存储。
func WithStore(store IStore) TrailOption {
	return func(t *Trail) { t.store = store }
}

// WithPublishers 追加推送目标。
func WithPublishers(publishers ...IPublisher) TrailOption {
	return func(t *Trail) { t.publishers = append(t.publishers, publishers...) }
}

func WithTrailLogger(logger logging.Logger) TrailOption {
	return func(t *Trail) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithTrailMetrics(m *Metrics) TrailOption {
	return func(t *Trail) { t.metrics = m }
}

// NewTrail 创建审计轨迹拦截器，通过 orm.WithInterceptors 或 Session.AddInterceptor 注册。
func NewTrail(opts ...TrailOption) *Trail {
	t := &Trail{logger: logging.Component("audit.trail"), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// SavedChanges 实现 orm.ISavedChangesInterceptor。
func (t *Trail) SavedChanges(ctx context.Context, s *orm.Session, result orm.SaveResult) {
	for _, saved := range result.Entries {
		rec, ok := t.recordOf(saved)
		if !ok {
			continue
		}
		t.metrics.trailRecorded(rec.EntityType, rec.Operation)
		t.emit(ctx, rec)
	}
}

func (t *Trail) emit(ctx context.Context, rec Record) {
	fields := []logging.Field{
		logging.String("entity_type", rec.EntityType),
		logging.String("entity_key", rec.EntityKey),
		logging.String("operation", string(rec.Operation)),
	}
	if t.store != nil {
		if err := t.store.Append(ctx, rec); err != nil {
			t.metrics.trailFailed("store")
			t.logger.Error(ctx, "append audit record failed", append(fields, logging.Error(err))...)
		}
	}
	for _, p := range t.publishers {
		if err := p.Publish(ctx, rec); err != nil {
			t.metrics.trailFailed(fmt.Sprintf("%T", p))
			t.logger.Error(ctx, "publish audit record failed", append(fields, logging.Error(err))...)
		}
	}
}

func (t *Trail) recordOf(saved orm.SavedEntry) (Record, bool) {
	r, ok := saved.Entity.(audited.IRecord)
	if !ok {
		return Record{}, false
	}
	env := r.AuditEnvelope()
	if env == nil {
		return Record{}, false
	}

	rec := Record{
		ID:         uuid.NewString(),
		EntityType: saved.EntityType,
		EntityKey:  fmt.Sprint(saved.Key),
		Version:    env.Version(),
	}
	switch saved.State {
	case orm.Added:
		rec.Operation = OperationCreate
		rec.Actor = env.CreatedBy()
		rec.Timestamp = env.CreatedAt()
	case orm.Deleted:
		rec.Operation = OperationDelete
		rec.Actor = env.UpdatedBy()
		rec.Timestamp = t.now().UTC()
	default:
		rec.Operation = OperationUpdate
		if env.IsDeleted() && slices.Contains(saved.Modified, ColumnDeleted) {
			rec.Operation = OperationSoftDelete
		}
		rec.Actor = env.UpdatedBy()
		if at := env.UpdatedAt(); at != nil {
			rec.Timestamp = *at
		} else {
			rec.Timestamp = t.now().UTC()
		}
	}

	for _, col := range saved.Modified {
		if isEnvelopeColumn(col) {
			continue
		}
		if rec.Changes == nil {
			rec.Changes = make(map[string]any)
		}
		rec.Changes[col] = saved.Values[col]
	}
	return rec, true
}
