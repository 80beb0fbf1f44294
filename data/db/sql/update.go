package sql

import (
	"context"
	"database/sql"
	"strings"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

type setClause struct {
	column string
	expr   string // 为空表示占位符赋值
	args   []any
}

type updateBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table string
	sets  []setClause
	where predicates
}

func (b *updateBuilder) Set(col string, val any) IUpdateBuilder {
	if col == "" {
		return b
	}
	b.sets = append(b.sets, setClause{column: col, args: []any{val}})
	return b
}

func (b *updateBuilder) SetExpr(col string, expr string, args ...any) IUpdateBuilder {
	if col == "" || expr == "" {
		return b
	}
	b.sets = append(b.sets, setClause{column: col, expr: expr, args: args})
	return b
}

func (b *updateBuilder) Where(cond string, args ...any) IUpdateBuilder {
	b.where.add(cond, args)
	return b
}

// Build SET 子句按调用顺序输出，参数顺序与占位符一致。
func (b *updateBuilder) Build() (string, []any) {
	if len(b.sets) == 0 {
		panic("updateBuilder: no columns or expressions to set")
	}
	mustIdent("updateBuilder", "table", b.table)

	var sb strings.Builder
	args := make([]any, 0, len(b.sets)+len(b.where.args))

	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.QuoteIdentifier(b.table))
	sb.WriteString(" SET ")

	for i, s := range b.sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		mustIdent("updateBuilder", "column", s.column)
		sb.WriteString(b.dialect.QuoteIdentifier(s.column))
		sb.WriteString(" = ")
		if s.expr == "" {
			sb.WriteString("?")
		} else {
			sb.WriteString(s.expr)
		}
		args = append(args, s.args...)
	}

	args = b.where.writeTo(&sb, args)
	return sb.String(), args
}

func (b *updateBuilder) Exec(ctx context.Context) (sql.Result, error) {
	q, args := b.Build()
	return b.db.Exec(ctx, q, args...)
}
