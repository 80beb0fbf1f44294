package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 审计层的 Prometheus 指标。nil *Metrics 的方法均为空操作。
type Metrics struct {
	validationFailures *prometheus.CounterVec
	bulkRows           *prometheus.CounterVec
	trailRecords       *prometheus.CounterVec
	trailFailures      *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		validationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbase_validation_failures_total",
			Help: "Saves rejected by the audit validator",
		}, []string{"entity_type", "reason"}),
		bulkRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbase_bulk_rows_total",
			Help: "Rows affected by audited bulk operations",
		}, []string{"entity_type", "operation"}),
		trailRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbase_trail_records_total",
			Help: "Audit trail records produced after successful saves",
		}, []string{"entity_type", "operation"}),
		trailFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbase_trail_failures_total",
			Help: "Audit trail records that could not be stored or published",
		}, []string{"sink"}),
	}
}

func (m *Metrics) validationFailed(entityType, reason string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(entityType, reason).Inc()
}

func (m *Metrics) bulkAffected(entityType string, op Operation, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.bulkRows.WithLabelValues(entityType, string(op)).Add(float64(rows))
}

func (m *Metrics) trailRecorded(entityType string, op Operation) {
	if m == nil {
		return
	}
	m.trailRecords.WithLabelValues(entityType, string(op)).Inc()
}

func (m *Metrics) trailFailed(sink string) {
	if m == nil {
		return
	}
	m.trailFailures.WithLabelValues(sink).Inc()
}
