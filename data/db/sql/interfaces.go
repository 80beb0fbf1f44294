// Package sql 提供最小的 SQL 语句构建器，orm 会话与批量更新都经由它生成语句。
//
// 约定：表名/列名必须通过 IsSafeIdentifier 校验，不合法时构建器直接 panic；
// orm 在模型注册阶段已完成校验，运行期不应触发。
package sql

import (
	"context"
	"database/sql"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

// ISql 提供统一的 SQL 构建与执行接口。
type ISql interface {
	Select(columns ...string) ISelectBuilder
	InsertInto(table string) IInsertBuilder
	Update(table string) IUpdateBuilder
	DeleteFrom(table string) IDeleteBuilder

	Dialect() dialect.Dialect
}

// ISelectBuilder 构建 SELECT 语句。
type ISelectBuilder interface {
	From(table string) ISelectBuilder
	Where(cond string, args ...any) ISelectBuilder
	OrderBy(expr string) ISelectBuilder
	Limit(n int) ISelectBuilder
	Offset(n int) ISelectBuilder
	Build() (query string, args []any)
	Query(ctx context.Context) (core.IRows, error)
	QueryRow(ctx context.Context) core.IRow
}

// IInsertBuilder 构建 INSERT 语句。
type IInsertBuilder interface {
	Columns(cols ...string) IInsertBuilder
	Values(vals ...any) IInsertBuilder
	// Returning 追加 RETURNING 子句，方言不支持时忽略
	Returning(cols ...string) IInsertBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
	QueryRow(ctx context.Context) core.IRow
}

// IUpdateBuilder 构建 UPDATE 语句。
type IUpdateBuilder interface {
	Set(column string, val any) IUpdateBuilder
	// SetExpr 追加 "column = expr"，expr 可引用当前行的列（例如 "version" + 1），
	// 由调用方保证表达式合法性与参数顺序。
	SetExpr(column string, expr string, args ...any) IUpdateBuilder
	Where(cond string, args ...any) IUpdateBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
}

// IDeleteBuilder 构建 DELETE 语句。
type IDeleteBuilder interface {
	Where(cond string, args ...any) IDeleteBuilder
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
}

type sqlImpl struct {
	db      core.IDatabase
	dialect dialect.Dialect
}

// New 创建 ISql 实例。
func New(db core.IDatabase) ISql {
	return &sqlImpl{
		db:      db,
		dialect: dialect.FromDatabase(db),
	}
}

func (s *sqlImpl) Select(columns ...string) ISelectBuilder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return &selectBuilder{db: s.db, dialect: s.dialect, cols: columns}
}

func (s *sqlImpl) InsertInto(table string) IInsertBuilder {
	return &insertBuilder{db: s.db, dialect: s.dialect, table: table}
}

func (s *sqlImpl) Update(table string) IUpdateBuilder {
	return &updateBuilder{db: s.db, dialect: s.dialect, table: table}
}

func (s *sqlImpl) DeleteFrom(table string) IDeleteBuilder {
	return &deleteBuilder{db: s.db, dialect: s.dialect, table: table}
}

func (s *sqlImpl) Dialect() dialect.Dialect { return s.dialect }
