package types

import "strings"

// TableIdentifier is an opaque table name understood by each datastore
// adapter in its own convention: the warehouse reads it as
// catalog.database.table, while the embedded and mock backends use only
// the final segment.
type TableIdentifier string

// Leaf returns the final dot-separated segment of the identifier.
func (t TableIdentifier) Leaf() string {
	s := string(t)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Segments splits the identifier on dots.
func (t TableIdentifier) Segments() []string {
	return strings.Split(string(t), ".")
}

// String returns the identifier text.
func (t TableIdentifier) String() string {
	return string(t)
}
