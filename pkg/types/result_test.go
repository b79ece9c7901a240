package types

import "testing"

func TestNewResult_Invariants(t *testing.T) {
	rows := []map[string]interface{}{
		{"id": int64(1), "name": "a"},
		{"id": int64(2), "name": "b"},
	}
	r := NewResult([]string{"id", "name"}, rows)

	if !r.Success {
		t.Error("NewResult should be successful")
	}
	if r.RowCount != len(r.Rows) {
		t.Errorf("RowCount = %d, want %d", r.RowCount, len(r.Rows))
	}
	if r.Error != "" {
		t.Errorf("successful result carries error %q", r.Error)
	}
	if len(r.Columns) != 2 {
		t.Errorf("Columns = %v, want [id name]", r.Columns)
	}
}

func TestNewResult_NoRowsClearsColumns(t *testing.T) {
	r := NewResult([]string{"id"}, nil)
	if !r.Success {
		t.Error("empty result should be successful")
	}
	if r.RowCount != 0 || len(r.Rows) != 0 {
		t.Errorf("empty result has RowCount=%d, Rows=%v", r.RowCount, r.Rows)
	}
	if len(r.Columns) != 0 {
		t.Errorf("columns should be empty with no rows, got %v", r.Columns)
	}
	if r.Rows == nil {
		t.Error("Rows should be an empty slice, not nil")
	}
}

func TestEmptyResult(t *testing.T) {
	r := EmptyResult()
	if !r.Success || r.RowCount != 0 || r.Error != "" {
		t.Errorf("EmptyResult() = %+v", r)
	}
}

func TestFailure(t *testing.T) {
	r := Failure("query exploded")
	if r.Success {
		t.Error("failure result must not be successful")
	}
	if r.Error != "query exploded" {
		t.Errorf("Error = %q, want %q", r.Error, "query exploded")
	}
	if r.RowCount != 0 || len(r.Rows) != 0 {
		t.Error("failure result must carry no rows")
	}
}

func TestFailure_EmptyMessage(t *testing.T) {
	r := Failure("")
	if r.Error == "" {
		t.Error("failed result must always carry a non-empty error")
	}
}

func TestFailuref(t *testing.T) {
	r := Failuref("bind failed for %q", "min_score")
	want := `bind failed for "min_score"`
	if r.Error != want {
		t.Errorf("Error = %q, want %q", r.Error, want)
	}
	if r.Success {
		t.Error("Failuref result must not be successful")
	}
}
