// Package audit 在 data/orm 之上实施审计信封约束：
// 提交前校验（Validator）、集合式批量软删除/审计更新（bulk.go）、
// 默认过滤已软删除记录（filter.go），以及可选的审计轨迹与变更推送（trail.go）。
package audit

// 信封字段对应的列名，顺序与 Envelope.ScanDest/ColumnValues 一致。
const (
	ColumnCreatedAt = "created_at"
	ColumnCreatedBy = "created_by_user_id"
	ColumnUpdatedAt = "updated_at"
	ColumnUpdatedBy = "updated_by_user_id"
	ColumnDeleted   = "deleted"
	ColumnVersion   = "version"
)

// EnvelopeColumns 返回信封列（按 ScanDest 顺序）。
func EnvelopeColumns() []string {
	return []string{ColumnCreatedAt, ColumnCreatedBy, ColumnUpdatedAt, ColumnUpdatedBy, ColumnDeleted, ColumnVersion}
}

func isEnvelopeColumn(col string) bool {
	switch col {
	case ColumnCreatedAt, ColumnCreatedBy, ColumnUpdatedAt, ColumnUpdatedBy, ColumnDeleted, ColumnVersion:
		return true
	default:
		return false
	}
}
