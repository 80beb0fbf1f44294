package orm

import (
	"context"
	"time"
)

// ISaveChangesInterceptor 在保存前调用；返回错误将中止保存，不写入任何数据。
//
// 调用时 ChangeTracker 已完成 DetectChanges，实现方可直接读取 Entries。
type ISaveChangesInterceptor interface {
	SavingChanges(ctx context.Context, session *Session) error
}

// ISavedChangesInterceptor 在事务提交并接受变更之后调用；没有待写入条目的保存也会调用，
// 此时 result.Entries 为空。
//
// 此时数据已落库，实现方不能再使保存失败，错误应自行记录。
type ISavedChangesInterceptor interface {
	SavedChanges(ctx context.Context, session *Session, result SaveResult)
}

// SavedEntry 已保存条目的快照（保存前状态）
type SavedEntry struct {
	EntityType string
	Key        any
	State      EntityState
	Entity     any
	// Modified 本次写入的列；Added 为全部列，Deleted 为空
	Modified []string
	// Values 保存时的列值（已解引用）
	Values map[string]any
}

// SaveResult 一次 SaveChanges 的结果
type SaveResult struct {
	Affected int
	Entries  []SavedEntry
	Duration time.Duration
	Err      error
}
