package orm

import (
	"context"
	"fmt"
	"strings"

	dbsql "auditbase/data/db/sql"
	apperrors "auditbase/errors"
	"auditbase/logging"
)

// Query 针对实体类型 T 的查询。
//
// 默认附加实体类型上注册的全局谓词，并将结果纳入会话跟踪（身份映射）。
// 与构建器一致，Query 不是并发安全的。
type Query[T any] struct {
	s             *Session
	et            *EntityType[T]
	err           error
	where         []Condition
	orderBy       []OrderBy
	limit         int
	offset        int
	ignoreFilters bool
	noTracking    bool
}

// From 创建类型 T 的查询；T 未注册时错误延迟到执行时返回。
func From[T any](s *Session) *Query[T] {
	et, err := EntityTypeOf[T](s.ctx.model)
	return &Query[T]{s: s, et: et, err: err}
}

// Where 追加条件（AND）。
func (q *Query[T]) Where(expr string, args ...any) *Query[T] {
	if expr != "" {
		q.where = append(q.where, Condition{Expr: expr, Args: args})
	}
	return q
}

// OrderBy 追加排序列。
func (q *Query[T]) OrderBy(column string, desc bool) *Query[T] {
	if column == "" {
		return q
	}
	if !dbsql.IsSafeIdentifier(column) && q.err == nil {
		q.err = apperrors.NewInvalidInput("orm: unsafe order by column %q", column)
	}
	q.orderBy = append(q.orderBy, OrderBy{Column: column, Desc: desc})
	return q
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q.limit = n
	return q
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q.offset = n
	return q
}

// IgnoreQueryFilters 跳过实体类型的全局谓词（例如包含已软删除的记录）。
func (q *Query[T]) IgnoreQueryFilters() *Query[T] {
	q.ignoreFilters = true
	return q
}

// AsNoTracking 结果不纳入会话跟踪。
func (q *Query[T]) AsNoTracking() *Query[T] {
	q.noTracking = true
	return q
}

// EntityType 返回查询的实体类型，未注册时为 nil。
func (q *Query[T]) EntityType() *EntityType[T] { return q.et }

// Session 返回查询所属的会话。
func (q *Query[T]) Session() *Session { return q.s }

// Predicates 返回生效的条件：全局谓词（未忽略时）在前，调用方条件在后。
func (q *Query[T]) Predicates() []Condition {
	var out []Condition
	if !q.ignoreFilters && q.et != nil {
		out = append(out, q.et.filters...)
	}
	return append(out, q.where...)
}

func (q *Query[T]) sql() dbsql.ISql {
	return dbsql.New(q.s.ctx.db)
}

// List 执行查询并返回全部结果。
func (q *Query[T]) List(ctx context.Context) ([]*T, error) {
	if q.err != nil {
		return nil, q.err
	}
	b := q.sql().Select(q.et.mapping.Columns...).From(q.et.Table())
	for _, c := range q.Predicates() {
		b.Where(c.Expr, c.Args...)
	}
	if len(q.orderBy) > 0 {
		parts := make([]string, len(q.orderBy))
		for i, o := range q.orderBy {
			parts[i] = q.s.ctx.dialect.QuoteIdentifier(o.Column)
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		b.OrderBy(strings.Join(parts, ", "))
	}
	b.Limit(q.limit).Offset(q.offset)

	rows, err := b.Query(ctx)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "query "+q.et.Name())
	}
	// 先读完并关闭结果集，再处理跟踪（单连接场景下避免占用连接）
	var loaded []*T
	for rows.Next() {
		e, err := q.et.mapping.Scan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, apperrors.WrapDatabaseError(ctx, err, "scan "+q.et.Name())
		}
		loaded = append(loaded, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, apperrors.WrapDatabaseError(ctx, err, "query "+q.et.Name())
	}
	_ = rows.Close()

	if q.noTracking {
		return loaded, nil
	}
	out := make([]*T, len(loaded))
	for i, e := range loaded {
		if tracked := q.s.tracker.findByKey(q.et, q.et.key(e)); tracked != nil {
			out[i] = tracked.entity.(*T)
			continue
		}
		q.s.tracker.track(e, q.et, Unchanged)
		out[i] = e
	}
	return out, nil
}

// First 返回第一条结果，无结果时返回 ErrNotFound。
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	saved := q.limit
	q.limit = 1
	list, err := q.List(ctx)
	q.limit = saved
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// Count 返回匹配的行数。
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	b := q.sql().Select("COUNT(*)").From(q.et.Table())
	for _, c := range q.Predicates() {
		b.Where(c.Expr, c.Args...)
	}
	var n int64
	if err := b.QueryRow(ctx).Scan(&n); err != nil {
		return 0, apperrors.WrapDatabaseError(ctx, err, "count "+q.et.Name())
	}
	return n, nil
}

// ExecuteUpdate 对匹配的行执行单条 UPDATE，不加载实体，也不经过保存拦截器。
// 已被会话跟踪的实例不会同步更新。
func (q *Query[T]) ExecuteUpdate(ctx context.Context, set *Assignments) (int64, error) {
	if err := q.bulkCheck(); err != nil {
		return 0, err
	}
	if set.Len() == 0 {
		return 0, apperrors.NewInvalidInput("orm: ExecuteUpdate on %s requires at least one assignment", q.et.Name())
	}
	b := q.sql().Update(q.et.Table())
	for _, a := range set.items {
		if !q.et.HasColumn(a.column) {
			return 0, apperrors.NewInvalidInput("orm: %s has no column %q", q.et.Name(), a.column)
		}
		if a.expr == "" {
			b.Set(a.column, normalize(a.args[0]))
		} else {
			b.SetExpr(a.column, a.expr, a.args...)
		}
	}
	for _, c := range q.Predicates() {
		b.Where(c.Expr, c.Args...)
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return 0, apperrors.WrapDatabaseError(ctx, err, "bulk update "+q.et.Name())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.WrapDatabaseError(ctx, err, "bulk update "+q.et.Name())
	}
	q.s.logger.Debug(ctx, "bulk update",
		logging.String("entity_type", q.et.Name()), logging.Int64("rows", n))
	return n, nil
}

// ExecuteDelete 对匹配的行执行单条 DELETE（物理删除）。
func (q *Query[T]) ExecuteDelete(ctx context.Context) (int64, error) {
	if err := q.bulkCheck(); err != nil {
		return 0, err
	}
	b := q.sql().DeleteFrom(q.et.Table())
	for _, c := range q.Predicates() {
		b.Where(c.Expr, c.Args...)
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return 0, apperrors.WrapDatabaseError(ctx, err, "bulk delete "+q.et.Name())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.WrapDatabaseError(ctx, err, "bulk delete "+q.et.Name())
	}
	return n, nil
}

func (q *Query[T]) bulkCheck() error {
	if q.err != nil {
		return q.err
	}
	if q.limit > 0 || q.offset > 0 || len(q.orderBy) > 0 {
		return fmt.Errorf("orm: bulk operations on %s do not support OrderBy/Limit/Offset", q.et.Name())
	}
	return nil
}
