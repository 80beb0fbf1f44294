package audit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"auditbase/data/orm"
	apperrors "auditbase/errors"
	"auditbase/logging"
)

var bulkMetrics atomic.Pointer[Metrics]

// SetBulkMetrics 设置批量操作的指标收集器，nil 表示关闭。
func SetBulkMetrics(m *Metrics) { bulkMetrics.Store(m) }

// ExecuteSoftDelete 以单条 UPDATE 软删除查询匹配的所有记录：
// deleted = true、updated_at = now、updated_by_user_id = actor、version = version + 1。
//
// 不加载实体，不经过提交校验；查询的全局谓词照常生效（已删除的记录不会再被删除，
// 除非调用方使用了 IgnoreQueryFilters）。返回受影响的行数。
func ExecuteSoftDelete[T any](ctx context.Context, q *orm.Query[T], actor *int64) (int64, error) {
	return ExecuteSoftDeleteAt(ctx, q, actor, time.Now())
}

// ExecuteSoftDeleteAt 同 ExecuteSoftDelete，使用指定时间。
func ExecuteSoftDeleteAt[T any](ctx context.Context, q *orm.Query[T], actor *int64, at time.Time) (int64, error) {
	set := orm.NewAssignments().Set(ColumnDeleted, true)
	return execute(ctx, q, set, actor, at, OperationBulkSoftDelete)
}

// ExecuteAuditedUpdate 以单条 UPDATE 执行调用方的赋值，并同时写入审计戳
// （updated_at、updated_by_user_id、version = version + 1）。
//
// set 不能包含信封列；set 为空时只推进审计戳。
func ExecuteAuditedUpdate[T any](ctx context.Context, q *orm.Query[T], set *orm.Assignments, actor *int64) (int64, error) {
	return ExecuteAuditedUpdateAt(ctx, q, set, actor, time.Now())
}

// ExecuteAuditedUpdateAt 同 ExecuteAuditedUpdate，使用指定时间。
func ExecuteAuditedUpdateAt[T any](ctx context.Context, q *orm.Query[T], set *orm.Assignments, actor *int64, at time.Time) (int64, error) {
	for _, col := range set.Columns() {
		if isEnvelopeColumn(col) {
			return 0, apperrors.NewError(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("audit: column %q is maintained by the audit envelope and cannot be assigned", col)).
				WithContext("column", col)
		}
	}
	return execute(ctx, q, set, actor, at, OperationBulkUpdate)
}

func execute[T any](ctx context.Context, q *orm.Query[T], set *orm.Assignments, actor *int64, at time.Time, op Operation) (int64, error) {
	et := q.EntityType()
	if et == nil {
		// 未注册的类型：交给 orm 返回结构性错误
		return q.ExecuteUpdate(ctx, set)
	}
	for _, col := range []string{ColumnUpdatedAt, ColumnUpdatedBy, ColumnVersion} {
		if !et.HasColumn(col) {
			return 0, &orm.StructuralError{EntityType: et.Name(), Reason: "missing audit column " + col}
		}
	}

	version := q.Session().Context().Dialect().QuoteIdentifier(ColumnVersion)
	stamps := orm.NewAssignments().
		Set(ColumnUpdatedAt, at.UTC()).
		Set(ColumnUpdatedBy, actorValue(actor)).
		SetExpr(ColumnVersion, version+" + 1")

	n, err := q.ExecuteUpdate(ctx, set.Concat(stamps))
	if err != nil {
		return 0, err
	}
	bulkMetrics.Load().bulkAffected(et.Name(), op, n)
	logging.Component("audit.bulk").Info(ctx, "audited bulk operation",
		logging.String("entity_type", et.Name()),
		logging.String("operation", string(op)),
		logging.Any("actor", actor),
		logging.Int64("rows", n))
	return n, nil
}

func actorValue(actor *int64) any {
	if actor == nil {
		return nil
	}
	return *actor
}
