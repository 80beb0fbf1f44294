package orm

import (
	"bytes"
	"reflect"
	"time"
)

// EntityState 条目状态
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Entry 被跟踪实体的条目：实体指针、原始快照与当前状态。
type Entry struct {
	entity   any
	et       entityTypeInfo
	state    EntityState
	original []any // 最近一次加载/接受时的列值
	current  []any // 最近一次 DetectChanges 时的列值
}

func (e *Entry) State() EntityState { return e.state }

// Entity 返回被跟踪的实体指针（*T）。
func (e *Entry) Entity() any { return e.entity }

// EntityType 返回实体类型名。
func (e *Entry) EntityType() string { return e.et.Name() }

func (e *Entry) Key() any { return e.et.key(e.entity) }

// OriginalValue 返回列的原始值；Added 条目或未映射的列返回 nil。
func (e *Entry) OriginalValue(col string) any {
	i := e.et.columnIndex(col)
	if i < 0 || e.original == nil {
		return nil
	}
	return e.original[i]
}

// CurrentValue 返回列的当前值（读取实体，不依赖 DetectChanges）。
func (e *Entry) CurrentValue(col string) any {
	i := e.et.columnIndex(col)
	if i < 0 {
		return nil
	}
	return normalize(e.et.values(e.entity)[i])
}

// ModifiedColumns 返回与原始快照不同的列（按映射顺序）。
func (e *Entry) ModifiedColumns() []string {
	if e.original == nil {
		return nil
	}
	cur := e.snapshotCurrent()
	cols := e.et.Columns()
	var out []string
	for i, col := range cols {
		if !valuesEqual(e.original[i], cur[i]) {
			out = append(out, col)
		}
	}
	return out
}

// IsModified 判断指定列是否被修改。
func (e *Entry) IsModified(col string) bool {
	i := e.et.columnIndex(col)
	if i < 0 || e.original == nil {
		return false
	}
	return !valuesEqual(e.original[i], e.CurrentValue(col))
}

func (e *Entry) snapshotCurrent() []any {
	raw := e.et.values(e.entity)
	out := make([]any, len(raw))
	for i, v := range raw {
		out[i] = normalize(v)
	}
	return out
}

func (e *Entry) acceptChanges() {
	switch e.state {
	case Deleted:
		e.state = Detached
		e.original = nil
	case Detached:
	default:
		e.original = e.snapshotCurrent()
		e.current = e.original
		e.state = Unchanged
	}
}

type trackKey struct {
	entityType string
	key        any
}

// ChangeTracker 会话内的变更跟踪器（身份映射 + 快照比较）。
type ChangeTracker struct {
	entries []*Entry
	byPtr   map[any]*Entry
	byKey   map[trackKey]*Entry
}

func newChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		byPtr: make(map[any]*Entry),
		byKey: make(map[trackKey]*Entry),
	}
}

// Entries 返回所有仍被跟踪的条目（不含 Detached）。
func (c *ChangeTracker) Entries() []*Entry {
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.state != Detached {
			out = append(out, e)
		}
	}
	return out
}

// Entry 返回实体对应的条目，未跟踪返回 nil。
func (c *ChangeTracker) Entry(entity any) *Entry {
	return c.byPtr[entity]
}

// DetectChanges 比较快照，刷新 Unchanged/Modified 状态。
func (c *ChangeTracker) DetectChanges() {
	for _, e := range c.entries {
		if e.state != Unchanged && e.state != Modified {
			continue
		}
		e.current = e.snapshotCurrent()
		changed := false
		for i := range e.current {
			if !valuesEqual(e.original[i], e.current[i]) {
				changed = true
				break
			}
		}
		if changed {
			e.state = Modified
		} else {
			e.state = Unchanged
		}
	}
}

// HasChanges 是否存在待保存的条目（会先执行 DetectChanges）。
func (c *ChangeTracker) HasChanges() bool {
	c.DetectChanges()
	for _, e := range c.entries {
		if e.state == Added || e.state == Modified || e.state == Deleted {
			return true
		}
	}
	return false
}

// Clear 停止跟踪所有实体。
func (c *ChangeTracker) Clear() {
	for _, e := range c.entries {
		e.state = Detached
	}
	c.entries = nil
	c.byPtr = make(map[any]*Entry)
	c.byKey = make(map[trackKey]*Entry)
}

func (c *ChangeTracker) track(entity any, et entityTypeInfo, state EntityState) *Entry {
	if e, ok := c.byPtr[entity]; ok && e.state != Detached {
		return e
	}
	e := &Entry{entity: entity, et: et, state: state}
	if state != Added {
		e.original = e.snapshotCurrent()
		e.current = e.original
	}
	c.entries = append(c.entries, e)
	c.byPtr[entity] = e
	if state != Added {
		c.byKey[trackKey{et.Name(), e.Key()}] = e
	}
	return e
}

func (c *ChangeTracker) findByKey(et entityTypeInfo, key any) *Entry {
	e, ok := c.byKey[trackKey{et.Name(), key}]
	if !ok || e.state == Detached {
		return nil
	}
	return e
}

// acceptAll 保存成功后调用：刷新快照，移除 Detached 条目。
func (c *ChangeTracker) acceptAll() {
	kept := c.entries[:0]
	for _, e := range c.entries {
		e.acceptChanges()
		if e.state == Detached {
			delete(c.byPtr, e.entity)
			delete(c.byKey, trackKey{e.et.Name(), e.Key()})
			continue
		}
		c.byKey[trackKey{e.et.Name(), e.Key()}] = e
		kept = append(kept, e)
	}
	c.entries = kept
}

// normalize 解引用指针，nil 指针归一为 nil，time.Time 统一为 UTC。
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case []byte:
		return bytes.Clone(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func valuesEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ba, bb)
	}
	return reflect.DeepEqual(a, b)
}
