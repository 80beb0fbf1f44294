package dialect

import (
	"strconv"
	"strings"

	core "auditbase/data/db"
)

// Name 标准化的数据库方言名称
type Name string

const (
	NameMySQL    Name = "mysql"
	NameSQLite   Name = "sqlite"
	NamePostgres Name = "postgres"
	NameUnknown  Name = ""
)

// Dialect 表示当前数据库的方言能力
//
// 只抽象 orm 实际用到的能力：占位符、标识符引号、INSERT ... RETURNING。
type Dialect struct {
	name Name
}

// New 根据字符串构造方言（大小写不敏感），pgx 视为 postgres
func New(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return Dialect{name: NameMySQL}
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "postgres", "postgresql", "pgx":
		return Dialect{name: NamePostgres}
	default:
		return Dialect{name: NameUnknown}
	}
}

// FromDatabase 从 IDatabase 实例推断方言
//
// 需要 IDatabase 可选实现 IDialectNameProvider 接口；否则返回 Unknown。
func FromDatabase(db core.IDatabase) Dialect {
	if db == nil {
		return Dialect{name: NameUnknown}
	}
	if p, ok := db.(core.IDialectNameProvider); ok {
		return New(p.GetDialectName())
	}
	return Dialect{name: NameUnknown}
}

func (d Dialect) Name() Name {
	return d.name
}

// DriverName 返回 database/sql 注册的驱动名（postgres 走 pgx stdlib）
func (d Dialect) DriverName() string {
	switch d.name {
	case NamePostgres:
		return "pgx"
	case NameSQLite:
		return "sqlite"
	default:
		return string(d.name)
	}
}

// QuoteIdentifier 根据方言对标识符进行转义（如表名/列名）。
//
// 约定：
//   - 支持 schema.table 等带点形式，会对每一段分别加引号；
//   - MySQL 使用反引号，Postgres/SQLite 使用双引号；
//   - Unknown 方言返回原始字符串。
//   - 不负责校验标识符语法，调用方需先经过 sql.IsSafeIdentifier。
func (d Dialect) QuoteIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		switch d.name {
		case NameMySQL:
			parts[i] = "`" + p + "`"
		case NameSQLite, NamePostgres:
			parts[i] = `"` + p + `"`
		default:
		}
	}
	return strings.Join(parts, ".")
}

// Rebind 将通用占位符 ? 转换为方言特定形式。
//
// 仅对 Postgres 做替换（? → $1、$2...）。单引号字符串字面量内的 ? 保持原样，
// 字面量内连续两个单引号视为转义，按 SQL 规则处理。
func (d Dialect) Rebind(query string) string {
	if query == "" || d.name != NamePostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	argIndex := 1
	inLiteral := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(ch)
		case ch == '?' && !inLiteral:
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// SupportsReturning 是否支持 INSERT ... RETURNING（sqlite ≥ 3.35 与 postgres）
func (d Dialect) SupportsReturning() bool {
	switch d.name {
	case NameSQLite, NamePostgres:
		return true
	default:
		return false
	}
}
