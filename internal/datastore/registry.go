package datastore

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tidemark/tidemark/internal/config"
	"github.com/tidemark/tidemark/internal/errors"
	"github.com/tidemark/tidemark/internal/observability"
	"github.com/tidemark/tidemark/pkg/types"
)

// Backend identifies a datastore backend implementation.
type Backend string

const (
	BackendWarehouse Backend = config.BackendWarehouse
	BackendEmbedded  Backend = config.BackendEmbedded
	BackendMock      Backend = config.BackendMock
)

// ParseBackend resolves a configured backend literal. Unrecognized values
// are a construction-time error.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendWarehouse, BackendEmbedded, BackendMock:
		return Backend(s), nil
	case "":
		return BackendWarehouse, nil
	default:
		return "", errors.NewConfigError(errors.CodeInvalidBackend,
			fmt.Sprintf("unrecognized backend %q (must be warehouse, embedded, or mock)", s))
	}
}

// Registry owns datastore construction and lifecycle. It is constructed
// once at process start and passed to callers; there is no package-global
// instance. Store resolution order: explicit backend argument (StoreFor) >
// configured backend > warehouse.
//
// The lazy check-and-create is mutex-guarded so the registry is safe to
// share across goroutines; the stores it returns are not (see Store).
type Registry struct {
	mu    sync.Mutex
	cfg   *config.Config
	stats *observability.OpStats

	store Store // instrumented store handed to callers
	raw   Store // underlying adapter, kept for Close
	kind  Backend
}

// NewRegistry creates a registry over the given configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:   cfg,
		stats: observability.NewOpStats(time.Hour),
	}
}

// Store returns the cached store, constructing it from the configured
// backend on first use.
func (r *Registry) Store(ctx context.Context) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		return r.store, nil
	}

	kind, err := ParseBackend(r.cfg.Datastore.Backend)
	if err != nil {
		return nil, err
	}
	return r.createLocked(ctx, kind)
}

// StoreFor replaces the cached store with one for an explicitly chosen
// backend, closing the prior store first if it is closable.
func (r *Registry) StoreFor(ctx context.Context, kind Backend) (Store, error) {
	if _, err := ParseBackend(string(kind)); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()
	return r.createLocked(ctx, kind)
}

// Backend reports the backend of the cached store, or empty if none.
func (r *Registry) Backend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kind
}

// Stats returns the shared operation statistics tracker.
func (r *Registry) Stats() *observability.OpStats {
	return r.stats
}

// Close releases the cached store, if any.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

// Reset closes the cached store and clears the cache, restoring the
// ability to select a backend afresh. Intended for test isolation.
func (r *Registry) Reset() error {
	return r.Close()
}

func (r *Registry) createLocked(ctx context.Context, kind Backend) (Store, error) {
	var raw Store
	switch kind {
	case BackendWarehouse:
		raw = NewWarehouse(ctx, r.cfg.Datastore.Warehouse)
	case BackendEmbedded:
		raw = NewEmbedded(r.cfg.Datastore.Embedded.Path)
	case BackendMock:
		raw = NewMock()
	default:
		return nil, errors.NewConfigError(errors.CodeInvalidBackend,
			fmt.Sprintf("unrecognized backend %q", kind))
	}

	r.raw = raw
	r.kind = kind
	r.store = &instrumentedStore{inner: raw, backend: string(kind), stats: r.stats}
	return r.store, nil
}

func (r *Registry) closeLocked() error {
	var err error
	if closer, ok := r.raw.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			log.Printf("registry: closing %s store: %v", r.kind, cerr)
			err = cerr
		}
	}
	r.raw = nil
	r.store = nil
	r.kind = ""
	return err
}

// instrumentedStore wraps a Store and feeds operation statistics. It adds
// no behavior of its own.
type instrumentedStore struct {
	inner   Store
	backend string
	stats   *observability.OpStats
}

func (s *instrumentedStore) Query(ctx context.Context, sql string, params []types.Parameter) types.Result {
	start := time.Now()
	res := s.inner.Query(ctx, sql, params)
	s.stats.Record(s.backend, "query", time.Since(start), res.Success)
	return res
}

func (s *instrumentedStore) Execute(ctx context.Context, sql string, params []types.Parameter) bool {
	start := time.Now()
	ok := s.inner.Execute(ctx, sql, params)
	s.stats.Record(s.backend, "execute", time.Since(start), ok)
	return ok
}

func (s *instrumentedStore) InsertRows(ctx context.Context, table types.TableIdentifier, rows []map[string]interface{}) bool {
	start := time.Now()
	ok := s.inner.InsertRows(ctx, table, rows)
	s.stats.Record(s.backend, "insert_rows", time.Since(start), ok)
	return ok
}

func (s *instrumentedStore) EnsureTableExists(ctx context.Context, table types.TableIdentifier, schema types.TableSchema) bool {
	start := time.Now()
	ok := s.inner.EnsureTableExists(ctx, table, schema)
	s.stats.Record(s.backend, "ensure_table_exists", time.Since(start), ok)
	return ok
}
