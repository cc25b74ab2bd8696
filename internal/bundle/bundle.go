package bundle

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/seantiz/duckview/internal/dataset"
)

// Bundle is one embedded engine runtime variant.
type Bundle interface {
	// Name is the registry key, e.g. "duckdb".
	Name() string

	// Probe reports whether this variant can run on the current host.
	Probe(ctx context.Context) error

	// Open instantiates an engine whose private files live under workDir.
	// The returned pool must not keep idle connections, so that closing a
	// *sql.Conn releases it.
	Open(ctx context.Context, workDir string) (*sql.DB, error)

	// Register makes f visible to SQL as '<f.Name>'. Registering the same
	// name again replaces the previous content.
	Register(ctx context.Context, db *sql.DB, workDir string, f dataset.VirtualFile) error

	// Capabilities reports what this variant supports.
	Capabilities() Capabilities
}

// Capabilities describes what a bundle supports.
type Capabilities struct {
	Name    string   `json:"name"`
	Engine  string   `json:"engine"`
	Formats []string `json:"formats"`

	// NativeFiles is true when the engine reads registered files itself
	// rather than from a table loaded at registration time.
	NativeFiles bool `json:"native_files"`
}

// ValidateFileName rejects logical names that would escape a work directory.
func ValidateFileName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid virtual file name %q", name)
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("virtual file name %q must not contain a path", name)
	}
	return nil
}

// QuoteIdent quotes a SQL identifier with double quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteString quotes a SQL string literal with single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
