// Package sqlite provides the pure Go engine bundle. Registered files are
// flattened into a table named after the logical file name, which SQLite lets
// a query reference as a quoted string: SELECT * FROM 'res.json'.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/dataset"
)

// Name is the registry key of this bundle.
const Name = "sqlite"

const (
	engineFile  = "engine.db"
	emptyColumn = "json"
)

// Compile-time interface satisfaction check.
var _ bundle.Bundle = (*Bundle)(nil)

// Bundle runs SQLite through modernc.org/sqlite.
type Bundle struct{}

// New creates the SQLite bundle.
func New() *Bundle {
	return &Bundle{}
}

// Name returns the registry key.
func (b *Bundle) Name() string { return Name }

// Capabilities reports the formats this bundle can register.
func (b *Bundle) Capabilities() bundle.Capabilities {
	return bundle.Capabilities{
		Name:    Name,
		Engine:  "SQLite (modernc.org/sqlite)",
		Formats: []string{dataset.FormatJSON, dataset.FormatCSV},
	}
}

// Probe opens a throwaway in-memory database.
func (b *Bundle) Probe(ctx context.Context) error {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("open probe database: %w", err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("probe query: %w", err)
	}
	return nil
}

// Open creates the engine database inside workDir. Every connection of the
// pool opens the same file, so tables registered on one are visible to all.
func (b *Bundle) Open(ctx context.Context, workDir string) (*sql.DB, error) {
	dsn := "file:" + filepath.Join(workDir, engineFile) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Register loads f into a table named f.Name, replacing any previous one.
func (b *Bundle) Register(ctx context.Context, db *sql.DB, _ string, f dataset.VirtualFile) error {
	if err := bundle.ValidateFileName(f.Name); err != nil {
		return err
	}

	tbl, err := dataset.Tabulate(f)
	if err != nil {
		return fmt.Errorf("tabulate %s: %w", f.Name, err)
	}
	columns := tbl.Columns
	if len(columns) == 0 {
		columns = []string{emptyColumn}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	table := bundle.QuoteIdent(f.Name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop previous %s: %w", f.Name, err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = bundle.QuoteIdent(c)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}

	if len(tbl.Rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range tbl.Rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}
