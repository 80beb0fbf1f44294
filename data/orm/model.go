package orm

import (
	"reflect"
	"slices"
	"sync"

	dbsql "auditbase/data/db/sql"
)

// entityTypeInfo 会话内部使用的非泛型实体类型视图
type entityTypeInfo interface {
	Name() string
	Table() string
	KeyColumn() string
	Columns() []string
	ConcurrencyToken() string
	QueryFilters() []Condition

	columnIndex(col string) int
	values(entity any) []any
	key(entity any) any
	setKey(entity any, v any)
	autoKey() bool
}

// EntityType 已注册的实体类型。
type EntityType[T any] struct {
	model   *ModelBuilder
	name    string
	mapping Mapping[T]
	index   map[string]int
	filters []Condition
	token   string
}

func (et *EntityType[T]) Name() string      { return et.name }
func (et *EntityType[T]) Table() string     { return et.mapping.Table }
func (et *EntityType[T]) KeyColumn() string { return et.mapping.Key }

func (et *EntityType[T]) Columns() []string { return slices.Clone(et.mapping.Columns) }

// ConcurrencyToken 返回并发令牌列名，未配置时为空。
func (et *EntityType[T]) ConcurrencyToken() string { return et.token }

func (et *EntityType[T]) QueryFilters() []Condition { return slices.Clone(et.filters) }

// HasColumn 判断映射是否包含指定列。
func (et *EntityType[T]) HasColumn(col string) bool {
	_, ok := et.index[col]
	return ok
}

// HasQueryFilter 追加全局查询谓词，默认作用于该类型的所有读取与批量操作，
// Query.IgnoreQueryFilters 可跳过。
func (et *EntityType[T]) HasQueryFilter(cond Condition) error {
	if err := et.model.mutable(et.name); err != nil {
		return err
	}
	if cond.Expr == "" {
		return structural(et.name, "empty query filter")
	}
	et.filters = append(et.filters, cond)
	return nil
}

// HasConcurrencyToken 指定并发令牌列。UPDATE/DELETE 会附加 "col = 原始值" 条件。
func (et *EntityType[T]) HasConcurrencyToken(col string) error {
	if err := et.model.mutable(et.name); err != nil {
		return err
	}
	if !et.HasColumn(col) {
		return structural(et.name, "concurrency token %q is not a mapped column", col)
	}
	et.token = col
	return nil
}

func (et *EntityType[T]) columnIndex(col string) int {
	if i, ok := et.index[col]; ok {
		return i
	}
	return -1
}

func (et *EntityType[T]) values(entity any) []any {
	return et.mapping.Values(entity.(*T))
}

func (et *EntityType[T]) key(entity any) any {
	return normalize(et.mapping.GetKey(entity.(*T)))
}

func (et *EntityType[T]) setKey(entity any, v any) {
	if et.mapping.SetKey != nil {
		et.mapping.SetKey(entity.(*T), v)
	}
}

func (et *EntityType[T]) autoKey() bool { return et.mapping.AutoKey }

// ModelBuilder 收集实体类型注册，Build 之后不可再修改。
type ModelBuilder struct {
	mu    sync.Mutex
	types map[reflect.Type]entityTypeInfo
	built bool
}

// NewModelBuilder 创建模型构建器
func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{types: make(map[reflect.Type]entityTypeInfo)}
}

func (mb *ModelBuilder) mutable(name string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.built {
		return structural(name, "model is already built")
	}
	return nil
}

// Entity 注册实体类型 T。
//
// 校验：类型未重复注册；表名/列名为安全标识符；Key 属于 Columns；
// Values/Scan/GetKey 必填；AutoKey 需要 SetKey。Table 为空时取 TableName[T]()。
func Entity[T any](mb *ModelBuilder, mapping Mapping[T]) (*EntityType[T], error) {
	name := typeName[T]()
	if err := mb.mutable(name); err != nil {
		return nil, err
	}
	if mapping.Table == "" {
		mapping.Table = TableName[T]()
	}
	if !dbsql.IsSafeIdentifier(mapping.Table) {
		return nil, structural(name, "unsafe table name %q", mapping.Table)
	}
	if mapping.Values == nil || mapping.Scan == nil || mapping.GetKey == nil {
		return nil, structural(name, "Values, Scan and GetKey are required")
	}
	if mapping.AutoKey && mapping.SetKey == nil {
		return nil, structural(name, "AutoKey requires SetKey")
	}

	index := make(map[string]int, len(mapping.Columns))
	for i, col := range mapping.Columns {
		if !dbsql.IsSafeIdentifier(col) {
			return nil, structural(name, "unsafe column name %q", col)
		}
		if _, dup := index[col]; dup {
			return nil, structural(name, "duplicate column %q", col)
		}
		index[col] = i
	}
	if _, ok := index[mapping.Key]; !ok {
		return nil, structural(name, "key column %q is not mapped", mapping.Key)
	}
	mapping.Columns = slices.Clone(mapping.Columns)

	et := &EntityType[T]{model: mb, name: name, mapping: mapping, index: index}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, dup := mb.types[t]; dup {
		return nil, structural(name, "entity type registered twice")
	}
	mb.types[t] = et
	return et, nil
}

// Build 冻结模型。
func (mb *ModelBuilder) Build() *Model {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.built = true
	types := make(map[reflect.Type]entityTypeInfo, len(mb.types))
	for t, et := range mb.types {
		types[t] = et
	}
	return &Model{types: types}
}

// Model 不可变的模型，可在多个 Context 间共享。
type Model struct {
	types map[reflect.Type]entityTypeInfo
}

// EntityTypeOf 查找类型 T 的注册信息，未注册返回 StructuralError。
func EntityTypeOf[T any](m *Model) (*EntityType[T], error) {
	et, ok := m.types[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, structural(typeName[T](), "entity type is not registered")
	}
	return et.(*EntityType[T]), nil
}

func (m *Model) lookup(entity any) (entityTypeInfo, bool) {
	t := reflect.TypeOf(entity)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, false
	}
	et, ok := m.types[t.Elem()]
	return et, ok
}
