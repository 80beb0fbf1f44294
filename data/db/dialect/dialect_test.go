package dialect

import "testing"

func TestRebind_Postgres(t *testing.T) {
	d := New("pgx")
	q := `UPDATE "widgets" SET "version" = "version" + 1 WHERE "id" = ? AND "version" = ?`
	got := d.Rebind(q)
	want := `UPDATE "widgets" SET "version" = "version" + 1 WHERE "id" = $1 AND "version" = $2`
	if got != want {
		t.Fatalf("Rebind mismatch\nwant: %s\ngot:  %s", want, got)
	}
}

func TestRebind_SkipsStringLiterals(t *testing.T) {
	d := New("postgres")
	q := "SELECT * FROM t WHERE note = 'what?' AND a = ? AND b = 'it''s?'"
	want := "SELECT * FROM t WHERE note = 'what?' AND a = $1 AND b = 'it''s?'"
	if got := d.Rebind(q); got != want {
		t.Fatalf("Rebind mismatch\nwant: %s\ngot:  %s", want, got)
	}
}

func TestRebind_NoChangeForSQLite(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
	}{
		{"sqlite", New("sqlite")},
		{"unknown", New("oracle")},
	}

	orig := "DELETE FROM t WHERE id = ? AND version = ?"
	for _, tt := range tests {
		if got := tt.d.Rebind(orig); got != orig {
			t.Fatalf("%s: expected no change, got %s", tt.name, got)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := New("sqlite").QuoteIdentifier("audit.widgets"); got != `"audit"."widgets"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := New("mysql").QuoteIdentifier("deleted"); got != "`deleted`" {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := New("").QuoteIdentifier("version"); got != "version" {
		t.Fatalf("unknown dialect should not quote: %s", got)
	}
}

func TestDriverName(t *testing.T) {
	if New("postgresql").DriverName() != "pgx" {
		t.Fatal("postgres should map to the pgx stdlib driver")
	}
	if New("sqlite3").DriverName() != "sqlite" {
		t.Fatal("sqlite3 should map to modernc sqlite driver")
	}
}
