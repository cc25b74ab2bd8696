//go:build cgo

// Package duckdb provides the DuckDB engine bundle. Registered files are
// written into the session work directory, and every connection searches that
// directory for relative paths, so DuckDB's own JSON and CSV readers resolve
// SELECT * FROM 'res.json'.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/dataset"
)

// Compile-time interface satisfaction check.
var _ bundle.Bundle = (*Bundle)(nil)

// Bundle runs DuckDB in process through duckdb-go.
type Bundle struct{}

// New creates the DuckDB bundle.
func New() *Bundle {
	return &Bundle{}
}

// Name returns the registry key.
func (b *Bundle) Name() string { return Name }

// Capabilities reports the formats this bundle can register.
func (b *Bundle) Capabilities() bundle.Capabilities {
	return bundle.Capabilities{
		Name:        Name,
		Engine:      "DuckDB (duckdb-go)",
		Formats:     []string{dataset.FormatJSON, dataset.FormatCSV},
		NativeFiles: true,
	}
}

// Probe starts a throwaway in-memory instance.
func (b *Bundle) Probe(ctx context.Context) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open probe instance: %w", err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("probe query: %w", err)
	}
	return nil
}

// Open starts an in-memory instance whose connections resolve relative file
// paths against workDir.
func (b *Bundle) Open(ctx context.Context, workDir string) (*sql.DB, error) {
	setSearchPath := "SET file_search_path = " + bundle.QuoteString(workDir)
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		_, err := execer.ExecContext(context.Background(), setSearchPath, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping instance: %w", err)
	}
	return db, nil
}

// Register writes f into workDir. DuckDB reads it on every query, so writing
// it again replaces the content.
func (b *Bundle) Register(_ context.Context, _ *sql.DB, workDir string, f dataset.VirtualFile) error {
	if err := bundle.ValidateFileName(f.Name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(workDir, f.Name), f.Content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}
