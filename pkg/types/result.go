package types

import "fmt"

// Result is the normalized outcome of a datastore query. Instances are
// created fresh per call, owned by the caller, and never mutated after
// construction.
//
// Invariants (kept by the constructors below):
//   - RowCount == len(Rows) whenever Success is true
//   - Error is non-empty if and only if Success is false
//   - Columns matches the key set of the first row, in backend order
//     (empty when there are no rows)
type Result struct {
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"row_count"`
	Columns  []string                 `json:"columns"`
	Success  bool                     `json:"success"`
	Error    string                   `json:"error,omitempty"`
}

// NewResult builds a successful result from ordered columns and rows.
func NewResult(columns []string, rows []map[string]interface{}) Result {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	if len(rows) == 0 {
		columns = []string{}
	}
	return Result{
		Rows:     rows,
		RowCount: len(rows),
		Columns:  columns,
		Success:  true,
	}
}

// EmptyResult returns a successful result with no rows.
func EmptyResult() Result {
	return NewResult(nil, nil)
}

// Failure builds a failed result carrying a human-readable error.
func Failure(msg string) Result {
	if msg == "" {
		msg = "unknown datastore error"
	}
	return Result{
		Rows:    []map[string]interface{}{},
		Columns: []string{},
		Error:   msg,
	}
}

// Failuref builds a failed result from a format string.
func Failuref(format string, args ...interface{}) Result {
	return Failure(fmt.Sprintf(format, args...))
}
