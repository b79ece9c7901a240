package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tidemark/tidemark/internal/dialect"
	"github.com/tidemark/tidemark/pkg/types"
)

// Embedded implements Store on a local SQLite database. It holds one
// physical connection for its lifetime and runs every statement through
// the dialect translator first, so queries written for the warehouse
// execute unmodified.
//
// A failed open leaves the adapter in a degraded state: it is still
// returned, and every operation against it reports a "not initialized"
// failure instead of crashing. The same applies after Close.
type Embedded struct {
	db      *sql.DB
	path    string
	initErr error
}

// NewEmbedded opens (or creates) the SQLite database at path. An empty
// path opens an in-memory database.
func NewEmbedded(path string) *Embedded {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_busy_timeout=5000"
	}

	e := &Embedded{path: path}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Printf("embedded: failed to open database %q: %v", dsn, err)
		e.initErr = fmt.Errorf("open %q: %w", dsn, err)
		return e
	}

	// One physical connection for the adapter's lifetime. Callers
	// serialize concurrent use externally.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		log.Printf("embedded: failed to connect to database %q: %v", dsn, err)
		db.Close()
		e.initErr = fmt.Errorf("connect %q: %w", dsn, err)
		return e
	}

	e.db = db
	return e
}

// Close releases the connection. The adapter is unusable afterwards; any
// subsequent operation reports a "not initialized" failure.
func (e *Embedded) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.initErr = fmt.Errorf("connection closed")
	return err
}

// Query translates the SQL, binds named parameters, and returns the rows.
func (e *Embedded) Query(ctx context.Context, sqlText string, params []types.Parameter) types.Result {
	if e.initErr != nil {
		return types.Failuref("embedded datastore not initialized: %v", e.initErr)
	}

	translated := dialect.Translate(sqlText)
	args, err := e.bindNamed(params)
	if err != nil {
		return types.Failuref("embedded bind failed: %v", err)
	}

	rows, err := e.db.QueryContext(ctx, translated, args...)
	if err != nil {
		log.Printf("embedded: query failed: %v", err)
		return types.Failuref("embedded query failed: %v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return types.Failuref("embedded query failed: %v", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return types.Failuref("embedded query failed: %v", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return types.Failuref("embedded scan failed: %v", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeScanned(values[i], colTypes[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return types.Failuref("embedded query failed: %v", err)
	}

	return types.NewResult(columns, out)
}

// Execute translates and runs a statement, reporting success.
func (e *Embedded) Execute(ctx context.Context, sqlText string, params []types.Parameter) bool {
	if e.initErr != nil {
		log.Printf("embedded: execute on uninitialized datastore: %v", e.initErr)
		return false
	}

	translated := dialect.Translate(sqlText)
	args, err := e.bindNamed(params)
	if err != nil {
		log.Printf("embedded: bind failed: %v", err)
		return false
	}

	if _, err := e.db.ExecContext(ctx, translated, args...); err != nil {
		log.Printf("embedded: execute failed: %v", err)
		return false
	}
	return true
}

// InsertRows inserts one parameterized row at a time; columns come from
// the first row's keys, sorted for a deterministic statement.
func (e *Embedded) InsertRows(ctx context.Context, table types.TableIdentifier, rows []map[string]interface{}) bool {
	if e.initErr != nil {
		log.Printf("embedded: insert on uninitialized datastore: %v", e.initErr)
		return false
	}
	if len(rows) == 0 {
		return true
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	markers := make([]string, len(columns))
	for i, col := range columns {
		markers[i] = dialect.BindMarker(col)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Leaf(), strings.Join(columns, ", "), strings.Join(markers, ", "))

	for _, row := range rows {
		args := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			args = append(args, sql.Named(col, coerceRowValue(row[col])))
		}
		if _, err := e.db.ExecContext(ctx, stmt, args...); err != nil {
			log.Printf("embedded: insert into %s failed: %v", table.Leaf(), err)
			return false
		}
	}
	return true
}

// EnsureTableExists creates the table if absent; an existing table is
// assumed compatible.
func (e *Embedded) EnsureTableExists(ctx context.Context, table types.TableIdentifier, schema types.TableSchema) bool {
	if e.initErr != nil {
		log.Printf("embedded: ensure table on uninitialized datastore: %v", e.initErr)
		return false
	}
	if err := schema.Validate(); err != nil {
		log.Printf("embedded: invalid schema for %s: %v", table.Leaf(), err)
		return false
	}

	defs := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		native, err := sqliteType(col.Type)
		if err != nil {
			log.Printf("embedded: cannot create %s: %v", table.Leaf(), err)
			return false
		}
		defs = append(defs, col.Name+" "+native)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Leaf(), strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		log.Printf("embedded: create table %s failed: %v", table.Leaf(), err)
		return false
	}
	return true
}

// bindNamed coerces parameters per their declared types and wraps them as
// named SQL arguments.
func (e *Embedded) bindNamed(params []types.Parameter) ([]interface{}, error) {
	if _, err := indexParameters(params); err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(params))
	for _, p := range params {
		v, err := coerceParameter(p)
		if err != nil {
			return nil, err
		}
		args = append(args, sql.Named(p.Name, v))
	}
	return args, nil
}

// sqliteType maps a logical type to its fixed SQLite column type. The
// mapping is total over the logical type set.
func sqliteType(t types.LogicalType) (string, error) {
	switch t {
	case types.TypeString:
		return "TEXT", nil
	case types.TypeInt64:
		return "INTEGER", nil
	case types.TypeFloat64:
		return "REAL", nil
	case types.TypeBool:
		return "INTEGER", nil
	case types.TypeTimestamp:
		return "TEXT", nil
	case types.TypeDate:
		return "TEXT", nil
	case types.TypeBytes:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("unmapped logical type %s", t)
	}
}

// normalizeScanned converts driver values into the normalized result
// shape: TEXT arrives as []byte under interface{} scanning and becomes a
// string unless the column is a BLOB.
func normalizeScanned(v interface{}, colType *sql.ColumnType) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if colType != nil && strings.EqualFold(colType.DatabaseTypeName(), "BLOB") {
		return b
	}
	return string(b)
}
