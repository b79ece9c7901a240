// Package types provides core data types for Tidemark.
package types

import "fmt"

// LogicalType is a backend-neutral column/value type. Each datastore
// adapter maps every LogicalType to exactly one native type; the set is
// closed and never carries a value itself.
type LogicalType int

const (
	TypeString LogicalType = iota
	TypeInt64
	TypeFloat64
	TypeBool
	TypeTimestamp
	TypeDate
	TypeBytes
)

// String returns the canonical upper-case name of the type.
func (t LogicalType) String() string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeInt64:
		return "INT64"
	case TypeFloat64:
		return "FLOAT64"
	case TypeBool:
		return "BOOL"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeDate:
		return "DATE"
	case TypeBytes:
		return "BYTES"
	default:
		return fmt.Sprintf("LogicalType(%d)", int(t))
	}
}

// ParseLogicalType parses a canonical type name as produced by String.
func ParseLogicalType(s string) (LogicalType, error) {
	switch s {
	case "STRING":
		return TypeString, nil
	case "INT64":
		return TypeInt64, nil
	case "FLOAT64":
		return TypeFloat64, nil
	case "BOOL":
		return TypeBool, nil
	case "TIMESTAMP":
		return TypeTimestamp, nil
	case "DATE":
		return TypeDate, nil
	case "BYTES":
		return TypeBytes, nil
	default:
		return TypeString, fmt.Errorf("unknown logical type %q", s)
	}
}

// Column defines a single column in a portable table schema.
type Column struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the backend-neutral logical type
	Type LogicalType `json:"type"`
}

// TableSchema is an ordered sequence of columns with unique names.
// Schemas are caller-supplied, immutable, and only read during table
// creation.
type TableSchema struct {
	Columns []Column `json:"columns"`
}

// Validate checks that the schema is non-empty and column names are
// unique.
func (s TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema has a column with an empty name")
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// Parameter is a named query input bound by name rather than position.
// Name excludes the @ sigil. The declared Type drives value coercion
// immediately before binding.
type Parameter struct {
	Name  string      `json:"name"`
	Type  LogicalType `json:"type"`
	Value interface{} `json:"value"`
}
