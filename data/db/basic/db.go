// Package basic 提供基于 database/sql 的 IDatabase 实现。
//
// 内置注册两个驱动：modernc.org/sqlite（"sqlite"）与 pgx stdlib（"pgx"），
// DBConfig.Driver 为 postgres/postgresql/pgx 时统一走 pgx。
package basic

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // register modernc sqlite as "sqlite"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
)

// DB 基于 database/sql 的最小实现，满足 core.IDatabase 抽象
type DB struct {
	executor
	db *sql.DB
}

var sqlOpen = sql.Open

// New 根据 core.DBConfig 创建数据库实例并做一次 Ping。
//
// sqlite 内存库（":memory:"）在连接池中每个连接都是独立数据库，
// 测试场景应设置 MaxOpenConns: 1。
func New(config core.DBConfig) (*DB, error) {
	name := config.Driver
	if name == "" {
		name = "sqlite"
	}
	d := dialect.New(name)
	if d.Name() == dialect.NameUnknown {
		return nil, fmt.Errorf("basic: unsupported driver %q", config.Driver)
	}

	db, err := sqlOpen(d.DriverName(), config.DataSource())
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleTime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newDB(db, d), nil
}

// Wrap 包装已有的 *sql.DB（连接由调用方管理）
func Wrap(db *sql.DB, driver string) *DB {
	return newDB(db, dialect.New(driver))
}

func newDB(db *sql.DB, d dialect.Dialect) *DB {
	return &DB{executor: executor{conn: db, dialect: d}, db: db}
}

func (d *DB) Begin(ctx context.Context) (core.ITransaction, error) {
	return d.BeginTx(ctx, nil)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{executor: executor{conn: tx, dialect: d.dialect}, owner: d, tx: tx}, nil
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
func (d *DB) Close() error                   { return d.db.Close() }
func (d *DB) Raw() any                       { return d.db }

// ExecDDL 辅助：执行建表等 DDL（测试与示例使用）
func (d *DB) ExecDDL(ctx context.Context, statements ...string) error {
	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("basic: exec ddl: %w", err)
		}
	}
	return nil
}
