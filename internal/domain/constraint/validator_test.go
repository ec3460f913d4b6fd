package constraint

import (
	"reflect"
	"testing"

	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

func batchWith(t *testing.T, rows []dataset.Row) dataset.Dataset {
	t.Helper()
	schema, err := dataset.NewSchema([]dataset.Column{
		dataset.ReconstructColumn("Age", dataset.Numeric),
		dataset.ReconstructColumn("Region", dataset.Categorical),
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return dataset.FromRows(schema, rows)
}

func TestValidate_CombinedIsJointAND(t *testing.T) {
	rows := batchWith(t, []dataset.Row{
		{"Age": dataset.Number(35), "Region": dataset.Label("N")}, // both pass
		{"Age": dataset.Number(35), "Region": dataset.Label("E")}, // region fails
		{"Age": dataset.Number(10), "Region": dataset.Label("N")}, // age fails
		{"Age": dataset.Number(10), "Region": dataset.Label("E")}, // both fail
	})

	age, _ := NewNumeric(30, 40)
	region, _ := NewCategorical([]string{"N", "S"})
	spec := NewSpec(map[string]Constraint{"Age": age, "Region": region})

	report := Validate(rows, spec)

	if got := report.Combined(); !reflect.DeepEqual(got, []bool{true, false, false, false}) {
		t.Errorf("combined mask = %v", got)
	}
	if got, _ := report.Column("Age"); !reflect.DeepEqual(got, []bool{true, true, false, false}) {
		t.Errorf("Age mask = %v", got)
	}
	if got, _ := report.Column("Region"); !reflect.DeepEqual(got, []bool{true, false, true, false}) {
		t.Errorf("Region mask = %v", got)
	}
	if report.PassCount() != 1 {
		t.Errorf("PassCount = %d, want 1", report.PassCount())
	}
}

func TestValidate_UnconstrainedColumnsPass(t *testing.T) {
	rows := batchWith(t, []dataset.Row{
		{"Age": dataset.Number(99), "Region": dataset.Label("N")},
		{"Age": dataset.Number(1), "Region": dataset.Label("X")},
	})

	report := Validate(rows, Spec{})
	if got := report.Combined(); !reflect.DeepEqual(got, []bool{true, true}) {
		t.Errorf("empty spec must pass every row, got %v", got)
	}
	if _, ok := report.Column("Age"); ok {
		t.Error("no per-column mask expected for an unconstrained column")
	}
}

func TestValidate_MissingValuesFail(t *testing.T) {
	rows := batchWith(t, []dataset.Row{
		{"Age": dataset.Null(), "Region": dataset.Label("N")},
		{"Region": dataset.Label("N")}, // Age cell absent entirely
	})

	age, _ := NewNumeric(0, 100)
	spec := NewSpec(map[string]Constraint{"Age": age})

	if got := Validate(rows, spec).Combined(); !reflect.DeepEqual(got, []bool{false, false}) {
		t.Errorf("missing values must fail, got %v", got)
	}
}

func TestValidate_Pure(t *testing.T) {
	rows := batchWith(t, []dataset.Row{
		{"Age": dataset.Number(35), "Region": dataset.Label("N")},
		{"Age": dataset.Number(55), "Region": dataset.Label("S")},
	})

	age, _ := NewNumeric(30, 40)
	spec := NewSpec(map[string]Constraint{"Age": age})

	first := Validate(rows, spec)
	second := Validate(rows, spec)
	if !reflect.DeepEqual(first.Combined(), second.Combined()) {
		t.Error("validation is not idempotent")
	}
}
