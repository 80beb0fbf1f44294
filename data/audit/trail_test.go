package audit

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditbase/data/orm"
	"auditbase/domain/audited"
)

type capturePublisher struct {
	records []Record
	err     error
}

func (p *capturePublisher) Publish(ctx context.Context, rec Record) error {
	p.records = append(p.records, rec)
	return p.err
}

func TestTrail_RecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	f := setup(t)
	store, err := NewSQLStore(f.db, "")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	trail := NewTrail(WithStore(store), WithPublishers(pub))
	s := f.orm.NewSession()
	UseValidation(s)
	require.NoError(t, s.AddInterceptor(trail))

	w := newWidget("gear", 10)
	_, err = orm.Add(s, w)
	require.NoError(t, err)
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	w.Name = "gear v2"
	w.MarkUpdated(audited.Actor(7))
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	w.MarkDeleted(audited.Actor(8))
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	require.Len(t, pub.records, 3)
	assert.Equal(t, OperationCreate, pub.records[0].Operation)
	assert.Equal(t, int64(1), *pub.records[0].Actor)
	assert.Equal(t, OperationUpdate, pub.records[1].Operation)
	assert.Equal(t, map[string]any{"name": "gear v2"}, pub.records[1].Changes)
	assert.Equal(t, OperationSoftDelete, pub.records[2].Operation)
	assert.Equal(t, int64(3), pub.records[2].Version)
	assert.Nil(t, pub.records[2].Changes)

	stored, err := store.ListByEntity(ctx, "widget", "1", 0, 10)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, []Operation{OperationCreate, OperationUpdate, OperationSoftDelete},
		[]Operation{stored[0].Operation, stored[1].Operation, stored[2].Operation})
	assert.Equal(t, int64(7), *stored[1].Actor)
	assert.Equal(t, "gear v2", stored[1].Changes["name"])
	assert.True(t, pub.records[1].Timestamp.Equal(stored[1].Timestamp))

	page, err := store.ListByEntity(ctx, "widget", "1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Version)
}

func TestTrail_FailuresDoNotFailSave(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	pub := &capturePublisher{err: stderrors.New("broker down")}
	f := setup(t, orm.WithInterceptors(NewTrail(WithPublishers(pub), WithTrailMetrics(m))))

	s := f.orm.NewSession()
	_, err := orm.Add(s, newWidget("gear", 1))
	require.NoError(t, err)
	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Len(t, pub.records, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.trailFailures.WithLabelValues("*audit.capturePublisher")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.trailRecords.WithLabelValues("widget", string(OperationCreate))))
}

func TestTrail_HardDelete(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	f := setup(t, orm.WithInterceptors(NewTrail(WithPublishers(pub))))
	f.create(t, newWidget("gear", 1))

	s := f.orm.NewSession()
	w, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)
	_, err = orm.Remove(s, w)
	require.NoError(t, err)
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	require.Len(t, pub.records, 2)
	assert.Equal(t, OperationDelete, pub.records[1].Operation)
	assert.Equal(t, "1", pub.records[1].EntityKey)
}

func TestNewSQLStore_RejectsUnsafeTable(t *testing.T) {
	_, err := NewSQLStore(nil, "audit; drop")
	assert.Error(t, err)
}
