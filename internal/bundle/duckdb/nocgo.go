//go:build !cgo

package duckdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/dataset"
)

var errNoCgo = errors.New("duckdb bundle requires a cgo build")

// Bundle stands in for DuckDB in builds without cgo. Its probe always fails,
// so selection falls through to the next candidate.
type Bundle struct{}

// New creates the placeholder bundle.
func New() *Bundle {
	return &Bundle{}
}

// Name returns the registry key.
func (b *Bundle) Name() string { return Name }

// Capabilities reports no formats.
func (b *Bundle) Capabilities() bundle.Capabilities {
	return bundle.Capabilities{Name: Name, Engine: "DuckDB (unavailable)"}
}

// Probe always fails.
func (b *Bundle) Probe(context.Context) error { return errNoCgo }

// Open always fails.
func (b *Bundle) Open(context.Context, string) (*sql.DB, error) { return nil, errNoCgo }

// Register always fails.
func (b *Bundle) Register(context.Context, *sql.DB, string, dataset.VirtualFile) error {
	return errNoCgo
}
