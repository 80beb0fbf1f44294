package audit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditbase/data/orm"
	"auditbase/domain/audited"
	apperrors "auditbase/errors"
)

func TestValidator_LifecycleScenario(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()

	w := newWidget("gear", 10)
	f.create(t, w)
	assert.Equal(t, int64(1), f.load(t, w.ID).Version())

	s := f.orm.NewSession()
	loaded, err := orm.From[widget](s).Where("id = ?", w.ID).First(ctx)
	require.NoError(t, err)

	loaded.Name = "gear v2"
	loaded.MarkUpdated(audited.Actor(7))
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version())

	// 直接修改字段而不推进版本号
	loaded.Price = 99
	_, err = s.SaveChanges(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuditBypassed)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "widget", ve.EntityType)
	assert.Equal(t, w.ID, ve.Key)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetErrorCode(err))
	assert.Equal(t, int64(10), f.load(t, w.ID).Price, "nothing is written")

	loaded.MarkDeleted(audited.Actor(7))
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	stored := f.load(t, w.ID)
	assert.Equal(t, int64(3), stored.Version())
	assert.True(t, stored.IsDeleted())
	assert.Equal(t, int64(99), stored.Price)
	assert.Equal(t, int64(7), *stored.UpdatedBy())
	assert.Equal(t, int64(1), *stored.CreatedBy())

	n, err := orm.From[widget](f.orm.NewSession()).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestValidator_AllEntriesCheckedBeforeWrite(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()
	f.create(t, newWidget("a", 1), newWidget("b", 2))

	s := f.orm.NewSession()
	list, err := orm.From[widget](s).OrderBy("id", false).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list[0].Price = 100
	list[0].MarkUpdated(audited.Actor(2))
	list[1].Price = 200 // 未调用 MarkUpdated

	_, err = s.SaveChanges(ctx)
	require.ErrorIs(t, err, ErrAuditBypassed)
	assert.Equal(t, int64(1), f.load(t, list[0].ID).Price)
	assert.Equal(t, int64(1), f.load(t, list[0].ID).Version())
}

func TestValidator_NewAndRemovedRecordsAreNotChecked(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()
	w := newWidget("a", 1)
	f.create(t, w)

	s := f.orm.NewSession()
	loaded, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)
	_, err = orm.Remove(s, loaded)
	require.NoError(t, err)
	_, err = orm.Add(s, newWidget("b", 2))
	require.NoError(t, err)

	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestValidator_SyncFromBypassesOnce(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()
	w := newWidget("a", 1)
	f.create(t, w)

	s := f.orm.NewSession()
	loaded, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)
	loaded.MarkUpdated(audited.Actor(2))
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	// 来源与目标版本号相同，仅修改人不同
	source := &widget{Envelope: audited.NewEnvelope(nil)}
	source.MarkUpdated(audited.Actor(3))
	require.Equal(t, loaded.Version(), source.Version())

	loaded.SyncFrom(source)
	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.False(t, loaded.BypassesValidation())
	assert.Equal(t, int64(3), *f.load(t, w.ID).UpdatedBy())

	loaded.Name = "direct"
	_, err = s.SaveChanges(ctx)
	assert.ErrorIs(t, err, ErrAuditBypassed)
}

func TestUseValidation_PerSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, newWidget("a", 1))

	guarded := f.orm.NewSession()
	UseValidation(guarded)
	w, err := orm.From[widget](guarded).First(ctx)
	require.NoError(t, err)
	w.Price = 5
	_, err = guarded.SaveChanges(ctx)
	assert.ErrorIs(t, err, ErrAuditBypassed)

	// 未注册校验器的会话不受约束（并发令牌仍生效）
	plain := f.orm.NewSession()
	w2, err := orm.From[widget](plain).First(ctx)
	require.NoError(t, err)
	w2.Price = 5
	_, err = plain.SaveChanges(ctx)
	assert.NoError(t, err)
}

func TestValidator_AsyncSaveRunsSameChecks(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()
	f.create(t, newWidget("a", 1))

	s := f.orm.NewSession()
	w, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)
	w.Name = "async"

	res := <-s.SaveChangesAsync(ctx)
	assert.ErrorIs(t, res.Err, ErrAuditBypassed)

	w.MarkUpdated(nil)
	res = <-s.SaveChangesAsync(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Affected)
}

func TestValidator_RejectMutationAfterDelete(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		opts    []ValidatorOption
		wantErr bool
	}{
		{"permissive by default", nil, false},
		{"opt-in rejection", []ValidatorOption{RejectMutationAfterDelete()}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, WithValidation(tc.opts...))
			w := newWidget("a", 1)
			w.MarkDeleted(audited.Actor(1))
			f.create(t, w)

			s := f.orm.NewSession()
			loaded, err := orm.From[widget](s).IgnoreQueryFilters().First(ctx)
			require.NoError(t, err)
			loaded.MarkUpdated(audited.Actor(2))
			_, err = s.SaveChanges(ctx)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, ReasonModifiedAfterDelete, ve.Reason)
		})
	}
}

func TestValidator_SyncWithoutChangesDoesNotLeaveBypass(t *testing.T) {
	f := setup(t, WithValidation())
	ctx := context.Background()
	w := newWidget("a", 1)
	f.create(t, w)

	s := f.orm.NewSession()
	loaded, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)

	// 来源信封与装载值一致，同步后没有列变化，不会写入
	loaded.SyncFrom(&widget{Envelope: audited.NewEnvelope(nil)})
	require.True(t, loaded.BypassesValidation())
	n, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, loaded.BypassesValidation())

	_, err = s.SaveChanges(ctx)
	require.NoError(t, err)

	loaded.Price = 999
	_, err = s.SaveChanges(ctx)
	assert.ErrorIs(t, err, ErrAuditBypassed)
	stored := f.load(t, w.ID)
	assert.Equal(t, int64(1), stored.Price)
	assert.Equal(t, int64(1), stored.Version())
}

func TestValidator_RejectsEnvelopeReplacement(t *testing.T) {
	ctx := context.Background()

	t.Run("restore deleted record", func(t *testing.T) {
		f := setup(t, WithValidation())
		deleted := newWidget("old", 1)
		deleted.MarkDeleted(audited.Actor(1))
		f.create(t, deleted)

		s := f.orm.NewSession()
		loaded, err := orm.From[widget](s).IgnoreQueryFilters().First(ctx)
		require.NoError(t, err)

		// 用一个版本号更高但未删除的信封替换
		other := newWidget("other", 1)
		for other.Version() <= loaded.Version() {
			other.MarkUpdated(nil)
		}
		loaded.Envelope = other.Envelope

		_, err = s.SaveChanges(ctx)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, ReasonDeleteReverted, ve.Reason)
		assert.True(t, f.load(t, deleted.ID).IsDeleted())
	})

	t.Run("zero envelope", func(t *testing.T) {
		f := setup(t, WithValidation())
		w := newWidget("a", 1)
		f.create(t, w)

		s := f.orm.NewSession()
		loaded, err := orm.From[widget](s).First(ctx)
		require.NoError(t, err)
		loaded.Envelope = audited.Envelope{}

		_, err = s.SaveChanges(ctx)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, ReasonVersionNotAdvanced, ve.Reason)
		stored := f.load(t, w.ID)
		assert.Equal(t, int64(1), stored.Version())
		assert.False(t, stored.CreatedAt().IsZero())
	})

	t.Run("creation info replaced", func(t *testing.T) {
		f := setup(t, WithValidation())
		w := newWidget("a", 1)
		f.create(t, w)

		s := f.orm.NewSession()
		loaded, err := orm.From[widget](s).First(ctx)
		require.NoError(t, err)

		other := &widget{Envelope: audited.NewEnvelopeAt(audited.Actor(9), time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))}
		other.MarkUpdated(nil)
		loaded.Envelope = other.Envelope

		_, err = s.SaveChanges(ctx)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, ReasonCreationChanged, ve.Reason)
	})
}

func TestValidator_RejectsInconsistentNewRecord(t *testing.T) {
	f := setup(t, WithValidation())
	s := f.orm.NewSession()
	_, err := orm.Add(s, &widget{Name: "bare", Price: 1})
	require.NoError(t, err)

	_, err = s.SaveChanges(context.Background())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonEnvelopeInvalid, ve.Reason)

	n, err := orm.From[widget](f.orm.NewSession()).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestValidator_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	f := setup(t, WithValidation(WithMetrics(m)))
	ctx := context.Background()
	f.create(t, newWidget("a", 1))

	s := f.orm.NewSession()
	w, err := orm.From[widget](s).First(ctx)
	require.NoError(t, err)
	w.Name = "b"
	_, err = s.SaveChanges(ctx)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.validationFailures.WithLabelValues("widget", ReasonVersionNotAdvanced)))
}
