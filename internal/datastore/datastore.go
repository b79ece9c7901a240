// Package datastore exposes telemetry, cost, and feedback data through one
// uniform four-operation contract backed by a remote analytical warehouse,
// an embedded SQL engine, or an in-memory test double.
package datastore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/tidemark/tidemark/internal/errors"
	"github.com/tidemark/tidemark/pkg/types"
)

// Store is the boundary contract consumed by every caller (cost tracking,
// feedback logging, and any future component). Implementations never let
// an error escape: failures surface as Result.Success=false or a false
// return.
//
// Calls are synchronous and attempted exactly once; retry policy belongs
// to callers. Adapters provide no internal locking — concurrent use of one
// instance must be externally serialized.
type Store interface {
	// Query runs a SQL query with named @-parameters and returns a
	// normalized result.
	Query(ctx context.Context, sql string, params []types.Parameter) types.Result

	// Execute runs a statement that produces no rows, reporting success.
	Execute(ctx context.Context, sql string, params []types.Parameter) bool

	// InsertRows inserts rows into a table, inferring columns from the
	// first row's keys. All rows are assumed to share that key set.
	InsertRows(ctx context.Context, table types.TableIdentifier, rows []map[string]interface{}) bool

	// EnsureTableExists creates the table if absent. Idempotent; an
	// existing table is assumed compatible.
	EnsureTableExists(ctx context.Context, table types.TableIdentifier, schema types.TableSchema) bool
}

// placeholderRe matches canonical @name placeholders in caller SQL.
var placeholderRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// indexParameters builds a name-indexed view of a parameter list,
// rejecting duplicate names.
func indexParameters(params []types.Parameter) (map[string]types.Parameter, error) {
	byName := make(map[string]types.Parameter, len(params))
	for _, p := range params {
		if _, dup := byName[p.Name]; dup {
			return nil, errors.NewValidationError(errors.CodeDuplicateParameter,
				fmt.Sprintf("parameter %q appears more than once", p.Name))
		}
		byName[p.Name] = p
	}
	return byName, nil
}

// coerceParameter converts a parameter value into the form bound against
// the embedded engine, per the declared logical type. BOOL becomes 0/1 and
// TIMESTAMP/DATE become ISO-8601 text because SQLite has no native types
// for them.
func coerceParameter(p types.Parameter) (interface{}, error) {
	if p.Value == nil {
		return nil, nil
	}
	switch p.Type {
	case types.TypeBool:
		switch v := p.Value.(type) {
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to BOOL", p.Name, p.Value)
	case types.TypeTimestamp:
		switch v := p.Value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case string:
			return v, nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to TIMESTAMP", p.Name, p.Value)
	case types.TypeDate:
		switch v := p.Value.(type) {
		case time.Time:
			return v.UTC().Format("2006-01-02"), nil
		case string:
			return v, nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to DATE", p.Name, p.Value)
	case types.TypeInt64:
		switch v := p.Value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to INT64", p.Name, p.Value)
	case types.TypeFloat64:
		switch v := p.Value.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to FLOAT64", p.Name, p.Value)
	case types.TypeBytes:
		if v, ok := p.Value.([]byte); ok {
			return v, nil
		}
		return nil, fmt.Errorf("parameter %q: cannot coerce %T to BYTES", p.Name, p.Value)
	case types.TypeString:
		if v, ok := p.Value.(string); ok {
			return v, nil
		}
		return fmt.Sprintf("%v", p.Value), nil
	default:
		return nil, fmt.Errorf("parameter %q: unmapped logical type %s", p.Name, p.Type)
	}
}

// coerceRowValue converts an inserted row value by its Go kind. Rows carry
// no declared types, so only the lossless coercions apply: bool to 0/1 and
// time.Time to ISO-8601 text.
func coerceRowValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
