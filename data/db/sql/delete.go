package sql

import (
	"context"
	"database/sql"
	"strings"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

type deleteBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect
	table   string
	where   predicates
}

func (b *deleteBuilder) Where(cond string, args ...any) IDeleteBuilder {
	b.where.add(cond, args)
	return b
}

// Build 不带条件时删除整表；orm 的 ExecuteDelete 至少会带上全局过滤条件。
func (b *deleteBuilder) Build() (string, []any) {
	mustIdent("deleteBuilder", "table", b.table)

	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.dialect.QuoteIdentifier(b.table))
	args := b.where.writeTo(&sb, nil)
	return sb.String(), args
}

func (b *deleteBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args := b.Build()
	return b.db.Exec(ctx, q, args...)
}
