package orm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbsql "auditbase/data/db/sql"
	apperrors "auditbase/errors"
	"auditbase/logging"
)

// Session 工作单元：跟踪实体变更，SaveChanges 时在单个事务内写入。
//
// Session 不是并发安全的，每个 goroutine 应使用独立的会话。
type Session struct {
	id      string
	ctx     *Context
	tracker *ChangeTracker
	saving  []ISaveChangesInterceptor
	saved   []ISavedChangesInterceptor
	logger  logging.Logger
}

func newSession(c *Context) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		ctx:     c,
		tracker: newChangeTracker(),
		logger:  c.logger.WithFields(logging.String("session", id)),
	}
}

// ID 会话标识，用于日志关联。
func (s *Session) ID() string { return s.id }

func (s *Session) Context() *Context { return s.ctx }

func (s *Session) ChangeTracker() *ChangeTracker { return s.tracker }

// Entries 返回所有被跟踪的条目。
func (s *Session) Entries() []*Entry { return s.tracker.Entries() }

// AddInterceptor 注册拦截器，实现了两个接口的值会同时注册到保存前后。
func (s *Session) AddInterceptor(interceptor any) error {
	matched := false
	if i, ok := interceptor.(ISaveChangesInterceptor); ok {
		s.saving = append(s.saving, i)
		matched = true
	}
	if i, ok := interceptor.(ISavedChangesInterceptor); ok {
		s.saved = append(s.saved, i)
		matched = true
	}
	if !matched {
		return errNotInterceptor(interceptor)
	}
	return nil
}

func (s *Session) entityType(entity any) (entityTypeInfo, error) {
	et, ok := s.ctx.model.lookup(entity)
	if !ok {
		return nil, structural(fmt.Sprintf("%T", entity), "entity type is not registered")
	}
	return et, nil
}

// Add 以 Added 状态跟踪新实体。
func Add[T any](s *Session, entity *T) (*Entry, error) {
	et, err := s.entityType(entity)
	if err != nil {
		return nil, err
	}
	return s.tracker.track(entity, et, Added), nil
}

// Attach 以 Unchanged 状态跟踪已存在的实体，当前值即原始快照。
func Attach[T any](s *Session, entity *T) (*Entry, error) {
	et, err := s.entityType(entity)
	if err != nil {
		return nil, err
	}
	if e := s.tracker.findByKey(et, et.key(entity)); e != nil && e.entity != any(entity) {
		return nil, fmt.Errorf("orm: another %s with key %v is already tracked", et.Name(), e.Key())
	}
	return s.tracker.track(entity, et, Unchanged), nil
}

// Remove 将实体标记为 Deleted；Added 实体直接停止跟踪。
func Remove[T any](s *Session, entity *T) (*Entry, error) {
	et, err := s.entityType(entity)
	if err != nil {
		return nil, err
	}
	e := s.tracker.track(entity, et, Unchanged)
	if e.state == Added {
		e.state = Detached
		return e, nil
	}
	e.state = Deleted
	return e, nil
}

// SaveChanges 保存所有待写入的变更。
//
// 流程：DetectChanges → 保存前拦截器（任一失败则不写入）→ 事务内 INSERT/UPDATE/DELETE
// → 提交 → 接受变更 → 保存后拦截器。没有待写入条目时同样视为保存成功，
// 保存后拦截器收到空结果。受并发令牌保护的语句未影响行时回滚并返回
// *ConcurrencyConflictError。返回写入的条目数。
func (s *Session) SaveChanges(ctx context.Context) (int, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Normalize(err)
	}

	s.tracker.DetectChanges()
	for _, i := range s.saving {
		if err := i.SavingChanges(ctx, s); err != nil {
			return 0, err
		}
	}
	s.tracker.DetectChanges()

	pending := s.pending()
	if len(pending) == 0 {
		s.notifySaved(ctx, SaveResult{Duration: time.Since(start)})
		return 0, nil
	}

	result, err := s.write(ctx, pending)
	if err != nil {
		return 0, err
	}
	result.Duration = time.Since(start)

	s.tracker.acceptAll()
	s.logger.Debug(ctx, "changes saved",
		logging.Int("entries", result.Affected),
		logging.Duration("duration", result.Duration))

	s.notifySaved(ctx, result)
	return result.Affected, nil
}

func (s *Session) notifySaved(ctx context.Context, result SaveResult) {
	for _, i := range s.saved {
		i.SavedChanges(ctx, s, result)
	}
}

// SaveChangesAsync 在独立 goroutine 中执行 SaveChanges，结果通过 channel 返回一次。
//
// 调用方在结果返回前不得再操作该会话。
func (s *Session) SaveChangesAsync(ctx context.Context) <-chan SaveResult {
	ch := make(chan SaveResult, 1)
	go func() {
		defer close(ch)
		n, err := s.SaveChanges(ctx)
		ch <- SaveResult{Affected: n, Err: err}
	}()
	return ch
}

func (s *Session) pending() []*Entry {
	var out []*Entry
	for _, e := range s.tracker.entries {
		switch e.state {
		case Added, Modified, Deleted:
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) write(ctx context.Context, pending []*Entry) (result SaveResult, err error) {
	tx, err := s.ctx.db.Begin(ctx)
	if err != nil {
		return result, apperrors.WrapDatabaseError(ctx, err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := dbsql.New(tx)
	for _, e := range pending {
		saved := SavedEntry{EntityType: e.et.Name(), State: e.state, Entity: e.entity}
		switch e.state {
		case Added:
			err = s.insert(ctx, q, e)
			saved.Modified = e.et.Columns()
		case Modified:
			saved.Modified = e.ModifiedColumns()
			err = s.update(ctx, q, e, saved.Modified)
		case Deleted:
			err = s.delete(ctx, q, e)
		}
		if err != nil {
			return result, err
		}
		saved.Key = e.Key()
		saved.Values = columnValues(e)
		result.Entries = append(result.Entries, saved)
	}

	if err = ctx.Err(); err != nil {
		return result, apperrors.Normalize(err)
	}
	if err = tx.Commit(); err != nil {
		return result, apperrors.WrapDatabaseError(ctx, err, "commit")
	}
	result.Affected = len(result.Entries)
	return result, nil
}

func columnValues(e *Entry) map[string]any {
	cols := e.et.Columns()
	cur := e.snapshotCurrent()
	out := make(map[string]any, len(cols))
	for i, col := range cols {
		out[col] = cur[i]
	}
	return out
}

func (s *Session) insert(ctx context.Context, q dbsql.ISql, e *Entry) error {
	cols := e.et.Columns()
	vals := e.snapshotCurrent()
	keyCol := e.et.KeyColumn()
	if e.et.autoKey() {
		i := e.et.columnIndex(keyCol)
		cols = append(cols[:i:i], cols[i+1:]...)
		vals = append(vals[:i:i], vals[i+1:]...)
	}

	b := q.InsertInto(e.et.Table()).Columns(cols...).Values(vals...)
	if !e.et.autoKey() {
		if _, err := b.Exec(ctx); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "insert "+e.et.Name())
		}
		return nil
	}

	var id int64
	if s.ctx.caps.Supports(CapabilityReturning) {
		if err := b.Returning(keyCol).QueryRow(ctx).Scan(&id); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "insert "+e.et.Name())
		}
	} else {
		res, err := b.Exec(ctx)
		if err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "insert "+e.et.Name())
		}
		if id, err = res.LastInsertId(); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "insert "+e.et.Name())
		}
	}
	e.et.setKey(e.entity, id)
	return nil
}

func (s *Session) update(ctx context.Context, q dbsql.ISql, e *Entry, modified []string) error {
	if len(modified) == 0 {
		return nil
	}
	cur := e.snapshotCurrent()
	b := q.Update(e.et.Table())
	for _, col := range modified {
		if col == e.et.KeyColumn() {
			return structural(e.et.Name(), "key column %s of %v cannot be modified", col, e.OriginalValue(col))
		}
		b.Set(col, cur[e.et.columnIndex(col)])
	}
	for _, c := range s.guard(e) {
		b.Where(c.Expr, c.Args...)
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "update "+e.et.Name())
	}
	return checkAffected(res, e)
}

func (s *Session) delete(ctx context.Context, q dbsql.ISql, e *Entry) error {
	b := q.DeleteFrom(e.et.Table())
	for _, c := range s.guard(e) {
		b.Where(c.Expr, c.Args...)
	}
	res, err := b.Exec(ctx)
	if err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "delete "+e.et.Name())
	}
	return checkAffected(res, e)
}

// guard 主键条件，配置了并发令牌时追加 "token = 原始值"。
func (s *Session) guard(e *Entry) []Condition {
	quote := s.ctx.dialect.QuoteIdentifier
	keyCol := e.et.KeyColumn()
	conds := []Condition{Where(quote(keyCol)+" = ?", e.OriginalValue(keyCol))}
	if token := e.et.ConcurrencyToken(); token != "" {
		conds = append(conds, Where(quote(token)+" = ?", e.OriginalValue(token)))
	}
	return conds
}

func checkAffected(res sql.Result, e *Entry) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.WrapDatabaseError(context.Background(), err, "rows affected")
	}
	if n == 0 {
		token := e.et.ConcurrencyToken()
		return &ConcurrencyConflictError{
			EntityType: e.et.Name(),
			Key:        e.OriginalValue(e.et.KeyColumn()),
			Token:      token,
			Expected:   e.OriginalValue(token),
		}
	}
	return nil
}
