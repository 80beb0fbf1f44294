package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	core "auditbase/data/db"
	"auditbase/data/db/basic"
)

type gadget struct {
	ID      int64
	Name    string
	Status  string
	Version int64
}

func gadgetMapping() Mapping[gadget] {
	return Mapping[gadget]{
		Key:     "id",
		Columns: []string{"id", "name", "status", "version"},
		Values: func(g *gadget) []any {
			return []any{g.ID, g.Name, g.Status, g.Version}
		},
		Scan: func(s Scanner) (*gadget, error) {
			var g gadget
			if err := s.Scan(&g.ID, &g.Name, &g.Status, &g.Version); err != nil {
				return nil, err
			}
			return &g, nil
		},
		GetKey:  func(g *gadget) any { return g.ID },
		SetKey:  func(g *gadget, v any) { g.ID = v.(int64) },
		AutoKey: true,
	}
}

// 测试辅助：内存库 + gadget 模型（version 为并发令牌，过滤 archived）
func setupContext(t *testing.T, opts ...ContextOption) (*Context, *EntityType[gadget]) {
	t.Helper()
	db, err := basic.New(core.DBConfig{Driver: "sqlite", Database: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ExecDDL(context.Background(), `CREATE TABLE gadgets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL
	)`))

	mb := NewModelBuilder()
	et, err := Entity(mb, gadgetMapping())
	require.NoError(t, err)
	require.NoError(t, et.HasConcurrencyToken("version"))
	require.NoError(t, et.HasQueryFilter(Where("status <> ?", "archived")))
	return NewContext(db, mb.Build(), opts...), et
}

func seed(t *testing.T, c *Context, items ...*gadget) {
	t.Helper()
	s := c.NewSession()
	for _, g := range items {
		_, err := Add(s, g)
		require.NoError(t, err)
	}
	_, err := s.SaveChanges(context.Background())
	require.NoError(t, err)
}
