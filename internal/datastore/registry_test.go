package datastore

import (
	"context"
	"strings"
	"testing"

	"github.com/tidemark/tidemark/internal/config"
	"github.com/tidemark/tidemark/internal/errors"
)

func mockConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Datastore.Backend = config.BackendMock
	return cfg
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"warehouse", BackendWarehouse, false},
		{"embedded", BackendEmbedded, false},
		{"mock", BackendMock, false},
		{"", BackendWarehouse, false},
		{"postgres", "", true},
	}

	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if err != nil && errors.GetCode(err) != errors.CodeInvalidBackend {
			t.Errorf("ParseBackend(%q) code = %q, want %q", tt.in, errors.GetCode(err), errors.CodeInvalidBackend)
		}
	}
}

func TestRegistry_StoreIsCached(t *testing.T) {
	r := NewRegistry(mockConfig())
	defer r.Close()
	ctx := context.Background()

	s1, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	s2, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if s1 != s2 {
		t.Error("repeated Store calls must return the same instance")
	}
	if r.Backend() != BackendMock {
		t.Errorf("Backend() = %q, want mock", r.Backend())
	}
}

func TestRegistry_InvalidConfiguredBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Datastore.Backend = "postgres"
	r := NewRegistry(cfg)

	if _, err := r.Store(context.Background()); err == nil {
		t.Fatal("expected error for unrecognized backend")
	}
}

func TestRegistry_StoreForOverrides(t *testing.T) {
	r := NewRegistry(mockConfig())
	defer r.Close()
	ctx := context.Background()

	if _, err := r.Store(ctx); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	s, err := r.StoreFor(ctx, BackendEmbedded)
	if err != nil {
		t.Fatalf("StoreFor failed: %v", err)
	}
	if r.Backend() != BackendEmbedded {
		t.Errorf("Backend() = %q, want embedded after override", r.Backend())
	}

	res := s.Query(ctx, "SELECT 1 AS one", nil)
	if !res.Success || res.Rows[0]["one"] != int64(1) {
		t.Errorf("override store query = %+v", res)
	}
}

func TestRegistry_StoreForClosesPrior(t *testing.T) {
	r := NewRegistry(mockConfig())
	defer r.Close()
	ctx := context.Background()

	embedded, err := r.StoreFor(ctx, BackendEmbedded)
	if err != nil {
		t.Fatalf("StoreFor failed: %v", err)
	}

	if _, err := r.StoreFor(ctx, BackendMock); err != nil {
		t.Fatalf("second StoreFor failed: %v", err)
	}

	// The replaced embedded store was closed and must now refuse work.
	res := embedded.Query(ctx, "SELECT 1", nil)
	if res.Success || !strings.Contains(res.Error, "not initialized") {
		t.Errorf("query on replaced store = %+v, want not-initialized failure", res)
	}
}

func TestRegistry_StoreForRejectsUnknown(t *testing.T) {
	r := NewRegistry(mockConfig())
	if _, err := r.StoreFor(context.Background(), Backend("bigtable")); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if r.Backend() != "" {
		t.Error("failed override must not leave a cached store behind")
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry(mockConfig())
	ctx := context.Background()

	if _, err := r.Store(ctx); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if r.Backend() != "" {
		t.Errorf("Backend() = %q after Reset, want empty", r.Backend())
	}

	// A fresh store is constructed after reset.
	s, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store after Reset failed: %v", err)
	}
	if s == nil {
		t.Fatal("Store after Reset returned nil")
	}
}

func TestRegistry_RecordsOperationStats(t *testing.T) {
	r := NewRegistry(mockConfig())
	defer r.Close()
	ctx := context.Background()

	s, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	s.Query(ctx, "SELECT 1", nil)
	s.Query(ctx, "SELECT 1", nil)
	s.Execute(ctx, "DELETE FROM t", nil)

	top := r.Stats().Top(10)
	if len(top) != 2 {
		t.Fatalf("Top returned %d entries, want 2", len(top))
	}
	if top[0].Operation != "query" || top[0].Count != 2 {
		t.Errorf("top entry = %+v, want query x2", top[0])
	}
	if top[0].Backend != "mock" {
		t.Errorf("backend = %q, want mock", top[0].Backend)
	}
}
