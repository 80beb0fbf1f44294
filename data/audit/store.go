package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
	dbsql "auditbase/data/db/sql"
	apperrors "auditbase/errors"
)

// DefaultTable 审计记录表名
const DefaultTable = "audit_records"

var recordColumns = []string{"id", "entity_type", "entity_key", "operation", "actor_user_id", "version", "occurred_at", "changes"}

// SQLStore 基于 data/db 的审计记录存储。
//
// 写入使用独立连接，不参与业务保存的事务（Trail 在提交之后调用）。
type SQLStore struct {
	db    core.IDatabase
	sql   dbsql.ISql
	table string
}

// NewSQLStore 创建存储，table 为空时使用 DefaultTable。
func NewSQLStore(db core.IDatabase, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !dbsql.IsSafeIdentifier(table) {
		return nil, apperrors.NewInvalidInput("audit: unsafe table name %q", table)
	}
	return &SQLStore{db: db, sql: dbsql.New(db), table: table}, nil
}

// EnsureSchema 创建审计表与索引（若不存在）。
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ts := "DATETIME"
	if s.sql.Dialect().Name() == dialect.NamePostgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	operation TEXT NOT NULL,
	actor_user_id BIGINT NULL,
	version BIGINT NOT NULL,
	occurred_at %s NOT NULL,
	changes TEXT NULL
)`, s.table, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity ON %s (entity_type, entity_key, version)`,
			sanitizeIndexName(s.table), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "ensure audit schema")
		}
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	var changes any
	if len(rec.Changes) > 0 {
		raw, err := json.Marshal(rec.Changes)
		if err != nil {
			return apperrors.Wrap(ctx, err, apperrors.ErrCodeInvalidInput, "encode audit changes")
		}
		changes = string(raw)
	}
	var actor any
	if rec.Actor != nil {
		actor = *rec.Actor
	}
	_, err := s.sql.InsertInto(s.table).
		Columns(recordColumns...).
		Values(rec.ID, rec.EntityType, rec.EntityKey, string(rec.Operation), actor, rec.Version, rec.Timestamp.UTC(), changes).
		Exec(ctx)
	if err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "append audit record")
	}
	return nil
}

func (s *SQLStore) ListByEntity(ctx context.Context, entityType, entityKey string, offset, limit int) ([]Record, error) {
	rows, err := s.sql.Select(recordColumns...).
		From(s.table).
		Where("entity_type = ?", entityType).
		Where("entity_key = ?", entityKey).
		OrderBy("version, occurred_at").
		Limit(limit).
		Offset(offset).
		Query(ctx)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "list audit records")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			op      string
			actor   *int64
			at      time.Time
			changes *string
		)
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityKey, &op, &actor, &rec.Version, &at, &changes); err != nil {
			return nil, apperrors.WrapDatabaseError(ctx, err, "scan audit record")
		}
		rec.Operation = Operation(op)
		rec.Actor = actor
		rec.Timestamp = at.UTC()
		if changes != nil && *changes != "" {
			if err := json.Unmarshal([]byte(*changes), &rec.Changes); err != nil {
				return nil, apperrors.WrapError(err, apperrors.ErrCodeInternal, "decode audit changes")
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "list audit records")
	}
	return out, nil
}

func sanitizeIndexName(table string) string {
	out := []byte(table)
	for i, c := range out {
		if c == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}
