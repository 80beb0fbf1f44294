package orm

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Scanner 单行扫描接口，db.IRow 与 db.IRows 均满足。
type Scanner interface {
	Scan(dest ...any) error
}

// Mapping 描述实体类型 T 与表之间的映射。
//
// 约定：
//   - Columns 为有序列名，必须包含 Key；
//   - Values 返回的值与 Columns 一一对应；
//   - Scan 按 Columns 顺序扫描一行并构造实体；
//   - AutoKey 为 true 时 INSERT 省略主键列，由数据库生成后回写 SetKey(int64)。
type Mapping[T any] struct {
	Table   string
	Key     string
	Columns []string
	Values  func(*T) []any
	Scan    func(Scanner) (*T, error)
	GetKey  func(*T) any
	SetKey  func(*T, any)
	AutoKey bool
}

// TableName 返回类型 T 的默认表名：类型名转 snake_case 后取复数。
//
//	type AuditedWidget struct{} -> "audited_widgets"
func TableName[T any]() string {
	return inflection.Plural(toSnakeCase(typeName[T]()))
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// 词边界：小写后接大写，或连续大写的末尾（HTTPServer -> http_server）
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
