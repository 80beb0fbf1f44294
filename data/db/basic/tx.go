package basic

import (
	"context"
	"database/sql"
	"errors"

	core "auditbase/data/db"
)

// errNestedTx 事务内再次 Begin。事务边界由 orm.Session 统一管理。
var errNestedTx = errors.New("basic: nested transactions are not supported")

// Tx 包装 *sql.Tx。语句执行与方言改写来自 executor，
// 因而同一个 Tx 既可作为 core.ITransaction，也可交给只需要 core.IDatabase 的构建器。
type Tx struct {
	executor
	owner *DB
	tx    *sql.Tx
}

func (t *Tx) Begin(context.Context) (core.ITransaction, error) { return nil, errNestedTx }

func (t *Tx) BeginTx(context.Context, *sql.TxOptions) (core.ITransaction, error) {
	return nil, errNestedTx
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Ping 检查底层连接池；Close 为空操作，事务以 Commit/Rollback 结束。
func (t *Tx) Ping(ctx context.Context) error { return t.owner.Ping(ctx) }
func (t *Tx) Close() error                   { return nil }
func (t *Tx) Raw() any                       { return t.tx }
