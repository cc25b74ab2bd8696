package builtin

import (
	"context"
	"testing"

	"github.com/seantiz/duckview/internal/bundle/duckdb"
	"github.com/seantiz/duckview/internal/bundle/sqlite"
)

func TestRegistryOrder(t *testing.T) {
	infos := Registry().List(context.Background())
	if len(infos) != 2 {
		t.Fatalf("bundles = %d, want 2", len(infos))
	}
	if infos[0].Name != duckdb.Name || infos[1].Name != sqlite.Name {
		t.Errorf("order = %s, %s", infos[0].Name, infos[1].Name)
	}
	if !infos[1].Available {
		t.Errorf("sqlite unavailable: %s", infos[1].Reason)
	}
}

func TestSelectFallsBackToSQLite(t *testing.T) {
	b, err := Registry().Select(context.Background(), []string{"missing", sqlite.Name})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if b.Name() != sqlite.Name {
		t.Errorf("selected %q, want %q", b.Name(), sqlite.Name)
	}
}
