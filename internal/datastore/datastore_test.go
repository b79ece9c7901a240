package datastore

import (
	"testing"
	"time"

	"github.com/tidemark/tidemark/internal/errors"
	"github.com/tidemark/tidemark/pkg/types"
)

func TestIndexParameters(t *testing.T) {
	byName, err := indexParameters([]types.Parameter{
		{Name: "a", Type: types.TypeInt64, Value: 1},
		{Name: "b", Type: types.TypeString, Value: "x"},
	})
	if err != nil {
		t.Fatalf("indexParameters failed: %v", err)
	}
	if len(byName) != 2 || byName["a"].Value != 1 {
		t.Errorf("byName = %v", byName)
	}
}

func TestIndexParameters_Duplicate(t *testing.T) {
	_, err := indexParameters([]types.Parameter{
		{Name: "a", Type: types.TypeInt64, Value: 1},
		{Name: "a", Type: types.TypeInt64, Value: 2},
	})
	if err == nil {
		t.Fatal("expected duplicate-parameter error")
	}
	if errors.GetCode(err) != errors.CodeDuplicateParameter {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.CodeDuplicateParameter)
	}
}

func TestCoerceParameter(t *testing.T) {
	ts := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		param types.Parameter
		want  interface{}
	}{
		{"bool true to 1", types.Parameter{Name: "b", Type: types.TypeBool, Value: true}, int64(1)},
		{"bool false to 0", types.Parameter{Name: "b", Type: types.TypeBool, Value: false}, int64(0)},
		{"timestamp to rfc3339", types.Parameter{Name: "t", Type: types.TypeTimestamp, Value: ts}, "2026-08-24T10:30:00Z"},
		{"timestamp string passthrough", types.Parameter{Name: "t", Type: types.TypeTimestamp, Value: "2026-08-24T10:30:00Z"}, "2026-08-24T10:30:00Z"},
		{"date to iso", types.Parameter{Name: "d", Type: types.TypeDate, Value: ts}, "2026-08-24"},
		{"int widened", types.Parameter{Name: "n", Type: types.TypeInt64, Value: 42}, int64(42)},
		{"float from int", types.Parameter{Name: "f", Type: types.TypeFloat64, Value: 2}, float64(2)},
		{"string passthrough", types.Parameter{Name: "s", Type: types.TypeString, Value: "x"}, "x"},
		{"nil passthrough", types.Parameter{Name: "v", Type: types.TypeString, Value: nil}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceParameter(tt.param)
			if err != nil {
				t.Fatalf("coerceParameter failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestCoerceParameter_Mismatch(t *testing.T) {
	if _, err := coerceParameter(types.Parameter{Name: "b", Type: types.TypeBool, Value: "yes"}); err == nil {
		t.Error("string declared BOOL should error")
	}
	if _, err := coerceParameter(types.Parameter{Name: "t", Type: types.TypeTimestamp, Value: 42}); err == nil {
		t.Error("int declared TIMESTAMP should error")
	}
	if _, err := coerceParameter(types.Parameter{Name: "x", Type: types.TypeBytes, Value: "raw"}); err == nil {
		t.Error("string declared BYTES should error")
	}
}

func TestCoerceRowValue(t *testing.T) {
	ts := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	if got := coerceRowValue(true); got != int64(1) {
		t.Errorf("bool true = %v, want 1", got)
	}
	if got := coerceRowValue(false); got != int64(0) {
		t.Errorf("bool false = %v, want 0", got)
	}
	if got := coerceRowValue(ts); got != "2026-08-24T10:30:00Z" {
		t.Errorf("time = %v, want RFC3339 text", got)
	}
	if got := coerceRowValue("plain"); got != "plain" {
		t.Errorf("string = %v, want passthrough", got)
	}
	if got := coerceRowValue(1.5); got != 1.5 {
		t.Errorf("float = %v, want passthrough", got)
	}
}
