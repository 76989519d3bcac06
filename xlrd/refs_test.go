package xlrd

import (
	"reflect"
	"testing"
)

func TestFormulaRefs(t *testing.T) {
	tests := []struct {
		formula string
		want    []string
	}{
		{"SUM(A1:B2)+Sheet2!C3*2", []string{"A1:B2", "Sheet2!C3"}},
		{"A1+A1*$B$2", []string{"A1", "$B$2"}},
		{`IF(A1>0,"yes","no")`, []string{"A1"}},
		{"1+2", nil},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := FormulaRefs(tt.formula); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FormulaRefs(%q) = %q, want %q", tt.formula, got, tt.want)
		}
	}
}
