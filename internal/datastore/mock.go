package datastore

import (
	"context"

	"github.com/tidemark/tidemark/pkg/types"
)

// Mock implements Store as an in-memory test double. SQL text is ignored
// entirely: Query consumes a queue of preset results round-robin, Execute
// and EnsureTableExists always succeed, and inserted rows accumulate per
// table for inspection.
//
// Like the real adapters, Mock provides no internal locking; tests using
// it from multiple goroutines must serialize externally.
type Mock struct {
	responses []types.Result
	next      int
	inserted  map[string][]map[string]interface{}
}

// NewMock creates an empty mock datastore.
func NewMock() *Mock {
	return &Mock{
		inserted: make(map[string][]map[string]interface{}),
	}
}

// QueueResult appends a preset result to the response queue.
func (m *Mock) QueueResult(r types.Result) {
	m.responses = append(m.responses, r)
}

// Query returns the next queued result, wrapping back to the first after
// the last. An empty queue yields an empty successful result.
func (m *Mock) Query(ctx context.Context, sql string, params []types.Parameter) types.Result {
	if len(m.responses) == 0 {
		return types.EmptyResult()
	}
	r := m.responses[m.next]
	m.next = (m.next + 1) % len(m.responses)
	return r
}

// Execute always succeeds.
func (m *Mock) Execute(ctx context.Context, sql string, params []types.Parameter) bool {
	return true
}

// InsertRows records copies of the rows under the table's leaf name.
func (m *Mock) InsertRows(ctx context.Context, table types.TableIdentifier, rows []map[string]interface{}) bool {
	key := table.Leaf()
	for _, row := range rows {
		cp := make(map[string]interface{}, len(row))
		for k, v := range row {
			cp[k] = v
		}
		m.inserted[key] = append(m.inserted[key], cp)
	}
	return true
}

// EnsureTableExists always succeeds.
func (m *Mock) EnsureTableExists(ctx context.Context, table types.TableIdentifier, schema types.TableSchema) bool {
	return true
}

// InsertedRows returns the rows accumulated for a table, in insertion
// order. The returned slice is shared; callers must not mutate it.
func (m *Mock) InsertedRows(table types.TableIdentifier) []map[string]interface{} {
	return m.inserted[table.Leaf()]
}

// Reset clears all queued responses and stored rows.
func (m *Mock) Reset() {
	m.responses = nil
	m.next = 0
	m.inserted = make(map[string][]map[string]interface{})
}
