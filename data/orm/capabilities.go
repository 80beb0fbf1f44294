package orm

import "auditbase/data/db/dialect"

// Capability 表示底层数据库可选支持的能力标识。
type Capability string

const (
	CapabilityTransaction    Capability = "transaction"
	CapabilityReturning      Capability = "returning"
	CapabilityOptimisticLock Capability = "optimistic_lock"
	CapabilityBulkUpdate     Capability = "bulk_update"
)

// Capabilities 以集合形式表达支持的能力。
type Capabilities map[Capability]bool

// Supports 判断是否支持指定能力。
func (c Capabilities) Supports(cap Capability) bool {
	if c == nil {
		return false
	}
	return c[cap]
}

// NewCapabilities 便捷构造能力集合。
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, cap := range caps {
		set[cap] = true
	}
	return set
}

func capabilitiesOf(d dialect.Dialect) Capabilities {
	caps := NewCapabilities(CapabilityTransaction, CapabilityOptimisticLock, CapabilityBulkUpdate)
	if d.SupportsReturning() {
		caps[CapabilityReturning] = true
	}
	return caps
}
