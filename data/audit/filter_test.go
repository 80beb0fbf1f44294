package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditbase/data/orm"
	"auditbase/domain/audited"
)

type plainRow struct {
	ID   int64
	Name string
}

func plainMapping() orm.Mapping[plainRow] {
	return orm.Mapping[plainRow]{
		Key:     "id",
		Columns: []string{"id", "name"},
		Values:  func(r *plainRow) []any { return []any{r.ID, r.Name} },
		Scan: func(s orm.Scanner) (*plainRow, error) {
			var r plainRow
			return &r, s.Scan(&r.ID, &r.Name)
		},
		GetKey: func(r *plainRow) any { return r.ID },
	}
}

type thinAudited struct {
	audited.Envelope
	ID int64
}

func TestFilterOutDeleted_RequiresDeletedColumn(t *testing.T) {
	et, err := orm.Entity(orm.NewModelBuilder(), plainMapping())
	require.NoError(t, err)

	err = FilterOutDeleted(et)
	var se *orm.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "plainRow", se.EntityType)
	assert.Empty(t, et.QueryFilters())
}

func TestRegister_RequiresEnvelopeColumns(t *testing.T) {
	_, err := Register(orm.NewModelBuilder(), orm.Mapping[thinAudited]{
		Key:     "id",
		Columns: []string{"id", "deleted"},
		Values:  func(r *thinAudited) []any { return []any{r.ID, r.IsDeleted()} },
		Scan:    func(orm.Scanner) (*thinAudited, error) { return &thinAudited{}, nil },
		GetKey:  func(r *thinAudited) any { return r.ID },
	})
	assert.True(t, orm.IsStructural(err))
}

func TestRegister_ConfiguresTokenAndFilter(t *testing.T) {
	et, err := Register(orm.NewModelBuilder(), widgetMapping())
	require.NoError(t, err)
	assert.Equal(t, ColumnVersion, et.ConcurrencyToken())
	require.Len(t, et.QueryFilters(), 1)
	assert.Equal(t, "deleted = ?", et.QueryFilters()[0].Expr)
	assert.Equal(t, "widgets", et.Table())
}

func TestSoftDeletePredicate_DefaultAndIgnored(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	live, gone := newWidget("live", 1), newWidget("gone", 2)
	gone.MarkDeleted(audited.Actor(1))
	f.create(t, live, gone)

	s := f.orm.NewSession()
	list, err := orm.From[widget](s).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "live", list[0].Name)

	_, err = orm.From[widget](s).Where("name = ?", "gone").First(ctx)
	assert.ErrorIs(t, err, orm.ErrNotFound)

	all, err := orm.From[widget](s).IgnoreQueryFilters().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)
}
