package basic

import (
	"context"
	"database/sql"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

// conn *sql.DB 与 *sql.Tx 共有的语句执行能力
type conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// executor 在执行前按方言改写占位符，DB 与 Tx 共用
type executor struct {
	conn    conn
	dialect dialect.Dialect
}

func (x executor) Query(ctx context.Context, query string, args ...any) (core.IRows, error) {
	rows, err := x.conn.QueryContext(ctx, x.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (x executor) QueryRow(ctx context.Context, query string, args ...any) core.IRow {
	return &Row{row: x.conn.QueryRowContext(ctx, x.dialect.Rebind(query), args...)}
}

func (x executor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return x.conn.ExecContext(ctx, x.dialect.Rebind(query), args...)
}

// GetDialectName 实现 core.IDialectNameProvider
func (x executor) GetDialectName() string {
	return string(x.dialect.Name())
}
