package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/seantiz/duckview/internal/dataset"
)

func openTestDB(t *testing.T) (*Bundle, string, *sql.DB) {
	t.Helper()
	b := New()
	dir := t.TempDir()
	db, err := b.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return b, dir, db
}

func queryAll(t *testing.T, db *sql.DB, q string) [][]any {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), q)
	if err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestProbe(t *testing.T) {
	if err := New().Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestRegisterJSONQueryableByFileName(t *testing.T) {
	b, dir, db := openTestDB(t)

	f := dataset.VirtualFile{
		Name:    "res.json",
		Format:  dataset.FormatJSON,
		Content: []byte(`[{"id":1,"name":"Ann"},{"id":2,"name":"Bob"}]`),
	}
	if err := b.Register(context.Background(), db, dir, f); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rows := queryAll(t, db, "SELECT name FROM 'res.json' ORDER BY id")
	if len(rows) != 2 || rows[0][0] != "Ann" || rows[1][0] != "Bob" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRegisterReplacesPrevious(t *testing.T) {
	b, dir, db := openTestDB(t)

	first := dataset.VirtualFile{Name: "res.json", Format: dataset.FormatJSON, Content: []byte(`[{"a":1},{"a":2}]`)}
	second := dataset.VirtualFile{Name: "res.json", Format: dataset.FormatJSON, Content: []byte(`[{"b":"x"}]`)}

	for _, f := range []dataset.VirtualFile{first, second} {
		if err := b.Register(context.Background(), db, dir, f); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	rows := queryAll(t, db, "SELECT b FROM 'res.json'")
	if len(rows) != 1 || rows[0][0] != "x" {
		t.Errorf("rows = %v, want [[x]]", rows)
	}
}

func TestRegisterCSVAndEmpty(t *testing.T) {
	b, dir, db := openTestDB(t)

	csvFile := dataset.VirtualFile{Name: "sample.csv", Format: dataset.FormatCSV, Content: []byte("city,temp\nOslo,3\nRome,18\n")}
	if err := b.Register(context.Background(), db, dir, csvFile); err != nil {
		t.Fatalf("Register csv: %v", err)
	}
	rows := queryAll(t, db, "SELECT city FROM 'sample.csv' WHERE CAST(temp AS INTEGER) > 10")
	if len(rows) != 1 || rows[0][0] != "Rome" {
		t.Errorf("rows = %v, want [[Rome]]", rows)
	}

	empty := dataset.VirtualFile{Name: "empty.json", Format: dataset.FormatJSON, Content: []byte(`[]`)}
	if err := b.Register(context.Background(), db, dir, empty); err != nil {
		t.Fatalf("Register empty: %v", err)
	}
	if rows := queryAll(t, db, "SELECT * FROM 'empty.json'"); len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestRegisterRejectsPathNames(t *testing.T) {
	b, dir, db := openTestDB(t)

	err := b.Register(context.Background(), db, dir, dataset.VirtualFile{Name: "../x.json", Format: dataset.FormatJSON, Content: []byte(`[]`)})
	if err == nil {
		t.Error("expected error for path name")
	}
}

func TestOpenKeepsNoIdleConnections(t *testing.T) {
	_, _, db := openTestDB(t)

	queryAll(t, db, "SELECT 1")
	if open := db.Stats().OpenConnections; open != 0 {
		t.Errorf("OpenConnections = %d after query, want 0", open)
	}
}
