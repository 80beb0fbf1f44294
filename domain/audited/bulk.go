package audited

import "time"

// MarkAllDeleted 对内存中的一组记录逐条调用 MarkDeleted，nil 元素跳过。
//
// 与 data/audit.ExecuteSoftDelete 不同，记录仍需经由会话保存并接受提交校验。
func MarkAllDeleted[T any, PT interface {
	*T
	IRecord
}](records []PT, actor *int64) {
	MarkAllDeletedAt(records, actor, time.Now())
}

// MarkAllDeletedAt 同 MarkAllDeleted，所有记录使用同一时间戳。
func MarkAllDeletedAt[T any, PT interface {
	*T
	IRecord
}](records []PT, actor *int64, at time.Time) {
	for _, r := range records {
		if r == nil {
			continue
		}
		r.AuditEnvelope().MarkDeletedAt(actor, at)
	}
}
