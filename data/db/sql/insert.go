package sql

import (
	"context"
	"database/sql"
	"strings"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

type insertBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table     string
	columns   []string
	rows      [][]any
	returning []string
}

func (b *insertBuilder) Columns(cols ...string) IInsertBuilder {
	b.columns = cols
	return b
}

func (b *insertBuilder) Values(vals ...any) IInsertBuilder {
	if len(vals) == 0 {
		return b
	}
	b.rows = append(b.rows, vals)
	return b
}

func (b *insertBuilder) Returning(cols ...string) IInsertBuilder {
	b.returning = append(b.returning, cols...)
	return b
}

func (b *insertBuilder) Build() (string, []any) {
	if len(b.columns) == 0 {
		panic("insertBuilder: Columns is required")
	}
	if len(b.rows) == 0 {
		panic("insertBuilder: at least one row is required")
	}
	mustIdent("insertBuilder", "table", b.table)

	var sb strings.Builder
	args := make([]any, 0, len(b.rows)*len(b.columns))

	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.dialect.QuoteIdentifier(b.table))
	sb.WriteString(" (")
	sb.WriteString(b.quoteAll(b.columns))
	sb.WriteString(") VALUES ")

	rowPlaceholder := "(" + strings.TrimRight(strings.Repeat("?, ", len(b.columns)), ", ") + ")"

	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			panic("insertBuilder: values length mismatch columns length")
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rowPlaceholder)
		args = append(args, row...)
	}

	if len(b.returning) > 0 && b.dialect.SupportsReturning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.quoteAll(b.returning))
	}

	return sb.String(), args
}

func (b *insertBuilder) quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		mustIdent("insertBuilder", "column", col)
		quoted[i] = b.dialect.QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func (b *insertBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args := b.Build()
	return b.db.Exec(ctx, q, args...)
}

func (b *insertBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args := b.Build()
	return b.db.QueryRow(ctx, q, args...)
}
