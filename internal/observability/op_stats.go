// Package observability provides operation statistics tracking for the
// datastore adapters.
package observability

import (
	"sort"
	"sync"
	"time"
)

// OpStats tracks per-backend operation counts, failures, and cumulative
// latency. It is shared by every store the registry hands out, so unlike
// the adapters it is internally locked.
type OpStats struct {
	mu     sync.RWMutex
	ops    map[string]*OperationStats
	window time.Duration
}

// OperationStats holds statistics for one backend+operation pair.
type OperationStats struct {
	Backend       string
	Operation     string
	Count         int64
	Failures      int64
	TotalDuration time.Duration
	LastSeen      time.Time
}

// NewOpStats creates a new operation statistics tracker.
// window: time duration for pruning stale entries (e.g., 1 hour)
func NewOpStats(window time.Duration) *OpStats {
	return &OpStats{
		ops:    make(map[string]*OperationStats),
		window: window,
	}
}

// Record records one operation invocation.
// backend: the backend name (e.g., "embedded")
// operation: the contract operation (e.g., "query")
// This method is O(1) and thread-safe.
func (s *OpStats) Record(backend, operation string, d time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := backend + ":" + operation
	stats, exists := s.ops[key]
	if !exists {
		stats = &OperationStats{
			Backend:   backend,
			Operation: operation,
		}
		s.ops[key] = stats
	}

	stats.Count++
	if !success {
		stats.Failures++
	}
	stats.TotalDuration += d
	stats.LastSeen = time.Now()
}

// Top returns the top N operations by invocation count.
// Returns a copy of the stats sorted by count (descending).
func (s *OpStats) Top(n int) []OperationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.ops) == 0 {
		return []OperationStats{}
	}

	stats := make([]OperationStats, 0, len(s.ops))
	for _, op := range s.ops {
		stats = append(stats, *op)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically.
func (s *OpStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for key, stats := range s.ops {
		if stats.LastSeen.Before(threshold) {
			delete(s.ops, key)
		}
	}
}
