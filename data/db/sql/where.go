package sql

import "strings"

// predicates WHERE 子句：条件以 AND 连接，每个条件加括号以隔离其中的 OR。
type predicates struct {
	exprs []string
	args  []any
}

func (p *predicates) add(cond string, args []any) {
	if cond == "" {
		return
	}
	p.exprs = append(p.exprs, "("+cond+")")
	p.args = append(p.args, args...)
}

// writeTo 追加 " WHERE ..."，返回追加了条件参数的 args。
func (p *predicates) writeTo(sb *strings.Builder, args []any) []any {
	if len(p.exprs) == 0 {
		return args
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(p.exprs, " AND "))
	return append(args, p.args...)
}
