// Package builtin assembles the registry of engine bundles compiled into the
// binaries.
package builtin

import (
	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/bundle/duckdb"
	"github.com/seantiz/duckview/internal/bundle/sqlite"
)

// Registry returns a registry holding the DuckDB bundle followed by the
// SQLite fallback.
func Registry() *bundle.Registry {
	return bundle.NewRegistry(duckdb.New(), sqlite.New())
}
