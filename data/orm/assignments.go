package orm

import "slices"

type assignment struct {
	column string
	expr   string
	args   []any
}

// Assignments 批量更新的有序 SET 列表。
//
//	orm.NewAssignments().Set("status", "archived").SetExpr("hits", `"hits" + ?`, 1)
type Assignments struct {
	items []assignment
}

// NewAssignments 创建空的赋值列表。
func NewAssignments() *Assignments { return &Assignments{} }

// Set 追加 "column = ?"。
func (a *Assignments) Set(column string, val any) *Assignments {
	a.items = append(a.items, assignment{column: column, args: []any{val}})
	return a
}

// SetExpr 追加 "column = expr"，expr 可引用当前行的列。
func (a *Assignments) SetExpr(column, expr string, args ...any) *Assignments {
	a.items = append(a.items, assignment{column: column, expr: expr, args: args})
	return a
}

// Columns 返回被赋值的列（按追加顺序，可能重复）。
func (a *Assignments) Columns() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.items))
	for i, it := range a.items {
		out[i] = it.column
	}
	return out
}

// Len 赋值条目数。
func (a *Assignments) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// Concat 返回 a 之后拼接 b 的新列表，a、b 不变。
func (a *Assignments) Concat(b *Assignments) *Assignments {
	out := &Assignments{}
	if a != nil {
		out.items = slices.Clone(a.items)
	}
	if b != nil {
		out.items = append(out.items, b.items...)
	}
	return out
}
