package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	core "auditbase/data/db"
	"auditbase/data/db/basic"
	"auditbase/data/orm"
	"auditbase/domain/audited"
)

type widget struct {
	audited.Envelope
	ID    int64
	Name  string
	Price int64
}

func widgetMapping() orm.Mapping[widget] {
	return orm.Mapping[widget]{
		Key:     "id",
		Columns: append([]string{"id", "name", "price"}, EnvelopeColumns()...),
		Values: func(w *widget) []any {
			return append([]any{w.ID, w.Name, w.Price}, w.ColumnValues()...)
		},
		Scan: func(s orm.Scanner) (*widget, error) {
			var w widget
			dest := append([]any{&w.ID, &w.Name, &w.Price}, w.ScanDest()...)
			if err := s.Scan(dest...); err != nil {
				return nil, err
			}
			if err := w.AfterScan(); err != nil {
				return nil, err
			}
			return &w, nil
		},
		GetKey:  func(w *widget) any { return w.ID },
		SetKey:  func(w *widget, v any) { w.ID = v.(int64) },
		AutoKey: true,
	}
}

const widgetDDL = `CREATE TABLE widgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	price INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	created_by_user_id INTEGER NULL,
	updated_at DATETIME NULL,
	updated_by_user_id INTEGER NULL,
	deleted BOOLEAN NOT NULL DEFAULT 0,
	version INTEGER NOT NULL
)`

type fixture struct {
	db  *basic.DB
	orm *orm.Context
}

// 测试辅助：内存库 + 已注册的 widget 模型
func setup(t *testing.T, opts ...orm.ContextOption) fixture {
	t.Helper()
	db, err := basic.New(core.DBConfig{Driver: "sqlite", Database: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ExecDDL(context.Background(), widgetDDL))

	mb := orm.NewModelBuilder()
	_, err = Register(mb, widgetMapping())
	require.NoError(t, err)
	return fixture{db: db, orm: orm.NewContext(db, mb.Build(), opts...)}
}

func (f fixture) create(t *testing.T, items ...*widget) {
	t.Helper()
	s := f.orm.NewSession()
	for _, w := range items {
		_, err := orm.Add(s, w)
		require.NoError(t, err)
	}
	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
}

func (f fixture) load(t *testing.T, id int64) *widget {
	t.Helper()
	w, err := orm.From[widget](f.orm.NewSession()).IgnoreQueryFilters().Where("id = ?", id).First(context.Background())
	require.NoError(t, err)
	return w
}

func newWidget(name string, price int64) *widget {
	return &widget{Envelope: audited.NewEnvelope(audited.Actor(1)), Name: name, Price: price}
}
