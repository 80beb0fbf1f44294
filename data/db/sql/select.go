package sql

import (
	"context"
	"strings"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

type selectBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	cols    []string
	table   string
	where   predicates
	orderBy string
	limit   int
	offset  int
}

func (b *selectBuilder) From(table string) ISelectBuilder {
	b.table = table
	return b
}

func (b *selectBuilder) Where(cond string, args ...any) ISelectBuilder {
	b.where.add(cond, args)
	return b
}

func (b *selectBuilder) OrderBy(expr string) ISelectBuilder {
	if expr != "" {
		b.orderBy = expr
	}
	return b
}

func (b *selectBuilder) Limit(n int) ISelectBuilder {
	b.limit = n
	return b
}

func (b *selectBuilder) Offset(n int) ISelectBuilder {
	b.offset = n
	return b
}

func (b *selectBuilder) Build() (string, []any) {
	mustIdent("selectBuilder", "table", b.table)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteIdentifier(b.table))

	// 使用局部 args 副本，避免在多次 Build 调用之间污染 builder 状态。
	args := b.where.writeTo(&sb, make([]any, 0, len(b.where.args)+2))
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		if b.limit <= 0 && b.dialect.Name() == dialect.NameSQLite {
			// sqlite 要求 OFFSET 前必须有 LIMIT
			sb.WriteString(" LIMIT -1")
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	return sb.String(), args
}

func (b *selectBuilder) Query(ctx context.Context) (core.IRows, error) {
	q, args := b.Build()
	return b.db.Query(ctx, q, args...)
}

func (b *selectBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args := b.Build()
	return b.db.QueryRow(ctx, q, args...)
}
