package audit

import (
	"auditbase/data/orm"
	"auditbase/domain/audited"
)

// FilterOutDeleted 为实体类型注册 "deleted = false" 全局谓词。
// 映射缺少 deleted 列时返回 *orm.StructuralError。
func FilterOutDeleted[T any](et *orm.EntityType[T]) error {
	if !et.HasColumn(ColumnDeleted) {
		return &orm.StructuralError{EntityType: et.Name(), Reason: "soft-delete filter requires a \"deleted\" column"}
	}
	return et.HasQueryFilter(orm.Where(ColumnDeleted+" = ?", false))
}

// Register 注册审计实体：version 作为并发令牌，并过滤已软删除的记录。
//
// 映射必须包含全部信封列（见 EnvelopeColumns）。
func Register[T any, PT interface {
	*T
	audited.IRecord
}](mb *orm.ModelBuilder, mapping orm.Mapping[T]) (*orm.EntityType[T], error) {
	et, err := orm.Entity(mb, mapping)
	if err != nil {
		return nil, err
	}
	for _, col := range EnvelopeColumns() {
		if !et.HasColumn(col) {
			return nil, &orm.StructuralError{EntityType: et.Name(), Reason: "missing audit column " + col}
		}
	}
	if err := et.HasConcurrencyToken(ColumnVersion); err != nil {
		return nil, err
	}
	if err := FilterOutDeleted(et); err != nil {
		return nil, err
	}
	return et, nil
}
