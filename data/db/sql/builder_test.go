package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "auditbase/data/db"
	"auditbase/data/db/basic"
)

func TestUpdateBuilder_SetExprKeepsArgOrder(t *testing.T) {
	s := New(basic.Wrap(nil, "sqlite"))
	q, args := s.Update("widgets").
		Set("deleted", true).
		SetExpr("version", `"version" + ?`, 1).
		Where("id IN (?, ?)", 7, 8).
		Where("deleted = ?", false).
		Build()

	assert.Equal(t, `UPDATE "widgets" SET "deleted" = ?, "version" = "version" + ? WHERE (id IN (?, ?)) AND (deleted = ?)`, q)
	assert.Equal(t, []any{true, 1, 7, 8, false}, args)
}

func TestUpdateBuilder_PanicsWithoutSet(t *testing.T) {
	s := New(basic.Wrap(nil, "sqlite"))
	assert.Panics(t, func() { s.Update("widgets").Where("id = ?", 1).Build() })
}

func TestInsertBuilder_Returning(t *testing.T) {
	q, args := New(basic.Wrap(nil, "postgres")).
		InsertInto("widgets").
		Columns("name", "version").
		Values("gear", 1).
		Returning("id").
		Build()
	assert.Equal(t, `INSERT INTO "widgets" ("name", "version") VALUES (?, ?) RETURNING "id"`, q)
	assert.Equal(t, []any{"gear", 1}, args)

	q, _ = New(basic.Wrap(nil, "mysql")).
		InsertInto("widgets").Columns("name").Values("gear").Returning("id").Build()
	assert.NotContains(t, q, "RETURNING")
}

func TestSelectBuilder_OffsetWithoutLimitOnSQLite(t *testing.T) {
	q, args := New(basic.Wrap(nil, "sqlite")).
		Select("id", "name").From("widgets").
		Where("deleted = ?", false).
		OrderBy("id").
		Offset(5).
		Build()
	assert.Equal(t, `SELECT id, name FROM "widgets" WHERE (deleted = ?) ORDER BY id LIMIT -1 OFFSET ?`, q)
	assert.Equal(t, []any{false, 5}, args)
}

func TestDeleteBuilder_Build(t *testing.T) {
	s := New(basic.Wrap(nil, "sqlite"))
	q, args := s.DeleteFrom("widgets").
		Where("id = ? OR name = ?", 1, "gear").
		Where("").
		Where("version = ?", 3).
		Build()
	assert.Equal(t, `DELETE FROM "widgets" WHERE (id = ? OR name = ?) AND (version = ?)`, q)
	assert.Equal(t, []any{1, "gear", 3}, args)

	q, args = s.DeleteFrom("widgets").Build()
	assert.Equal(t, `DELETE FROM "widgets"`, q)
	assert.Empty(t, args)
}

func TestBuilders_RejectUnsafeIdentifiers(t *testing.T) {
	s := New(basic.Wrap(nil, "sqlite"))
	assert.Panics(t, func() { s.DeleteFrom("widgets; drop table x").Build() })
	assert.Panics(t, func() { s.Update("widgets").Set("na-me", 1).Build() })
	assert.True(t, IsSafeIdentifier("audit.widgets"))
	assert.False(t, IsSafeIdentifier("1abc"))
	assert.False(t, IsSafeIdentifier("a..b"))
}

func TestBuilders_ExecAgainstSQLite(t *testing.T) {
	db, err := basic.New(core.DBConfig{Driver: "sqlite", Database: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, db.ExecDDL(ctx, `CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, version INTEGER)`))

	s := New(db)
	var id int64
	require.NoError(t, s.InsertInto("widgets").Columns("name", "version").Values("gear", 1).Returning("id").QueryRow(ctx).Scan(&id))
	assert.Equal(t, int64(1), id)

	res, err := s.Update("widgets").SetExpr("version", `"version" + 1`).Where("id = ?", id).Exec(ctx)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(1), n)

	var version int64
	require.NoError(t, s.Select("version").From("widgets").Where("id = ?", id).QueryRow(ctx).Scan(&version))
	assert.Equal(t, int64(2), version)

	res, err = s.DeleteFrom("widgets").Where("id = ?", id).Exec(ctx)
	require.NoError(t, err)
	n, _ = res.RowsAffected()
	assert.Equal(t, int64(1), n)
}
