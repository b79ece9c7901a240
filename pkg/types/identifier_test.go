package types

import (
	"reflect"
	"testing"
)

func TestTableIdentifier_Leaf(t *testing.T) {
	tests := []struct {
		id   TableIdentifier
		want string
	}{
		{"costs", "costs"},
		{"analytics.costs", "costs"},
		{"AwsDataCatalog.analytics.costs", "costs"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := tt.id.Leaf(); got != tt.want {
			t.Errorf("Leaf(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestTableIdentifier_Segments(t *testing.T) {
	got := TableIdentifier("cat.db.tbl").Segments()
	want := []string{"cat", "db", "tbl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segments() = %v, want %v", got, want)
	}

	if got := TableIdentifier("tbl").Segments(); len(got) != 1 || got[0] != "tbl" {
		t.Errorf("Segments() = %v, want [tbl]", got)
	}
}
