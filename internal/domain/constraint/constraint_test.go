package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

func TestNewNumeric_Validation(t *testing.T) {
	tests := []struct {
		name    string
		min     float64
		max     float64
		wantErr bool
	}{
		{"valid range", 0, 10, false},
		{"point range", 5, 5, false},
		{"negative bounds", -10, -1, false},
		{"min greater than max", 10, 0, true},
		{"nan min", math.NaN(), 10, true},
		{"nan max", 0, math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNumeric(tt.min, tt.max)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConstraint) {
					t.Fatalf("expected ErrInvalidConstraint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewCategorical_EmptyAllowList(t *testing.T) {
	if _, err := NewCategorical(nil); !errors.Is(err, domain.ErrInvalidConstraint) {
		t.Fatalf("expected ErrInvalidConstraint, got %v", err)
	}
	if _, err := NewCategorical([]string{}); !errors.Is(err, domain.ErrInvalidConstraint) {
		t.Fatalf("expected ErrInvalidConstraint, got %v", err)
	}
}

func TestNumericSatisfied(t *testing.T) {
	c, err := NewNumeric(30, 40)
	if err != nil {
		t.Fatalf("NewNumeric: %v", err)
	}

	tests := []struct {
		name string
		v    dataset.Value
		want bool
	}{
		{"inside", dataset.Number(35), true},
		{"lower bound inclusive", dataset.Number(30), true},
		{"upper bound inclusive", dataset.Number(40), true},
		{"below", dataset.Number(29.999), false},
		{"above", dataset.Number(40.001), false},
		{"null fails", dataset.Null(), false},
		{"label fails numeric constraint", dataset.Label("35"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Satisfied(tt.v); got != tt.want {
				t.Errorf("Satisfied(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestCategoricalSatisfied(t *testing.T) {
	c, err := NewCategorical([]string{"N", "S"})
	if err != nil {
		t.Fatalf("NewCategorical: %v", err)
	}

	if !c.Satisfied(dataset.Label("N")) {
		t.Error("allowed label must pass")
	}
	if c.Satisfied(dataset.Label("E")) {
		t.Error("label outside allow-list must fail")
	}
	if c.Satisfied(dataset.Null()) {
		t.Error("null must fail")
	}
	if c.Satisfied(dataset.Number(1)) {
		t.Error("number must fail a categorical constraint")
	}
}

func TestSpec_CheckSchema(t *testing.T) {
	schema, err := dataset.NewSchema([]dataset.Column{
		dataset.ReconstructColumn("Age", dataset.Numeric),
		dataset.ReconstructColumn("Region", dataset.Categorical),
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	age, _ := NewNumeric(0, 100)
	region, _ := NewCategorical([]string{"N"})

	ok := NewSpec(map[string]Constraint{"Age": age, "Region": region})
	if err := ok.CheckSchema(schema); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	missing := NewSpec(map[string]Constraint{"Income": age})
	if err := missing.CheckSchema(schema); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for unknown column, got %v", err)
	}

	wrongKind := NewSpec(map[string]Constraint{"Region": age})
	if err := wrongKind.CheckSchema(schema); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for kind mismatch, got %v", err)
	}
}

func TestSpec_Accessors(t *testing.T) {
	age, _ := NewNumeric(0, 100)
	region, _ := NewCategorical([]string{"S", "N"})
	spec := NewSpec(map[string]Constraint{"Region": region, "Age": age})

	cols := spec.Columns()
	if len(cols) != 2 || cols[0] != "Age" || cols[1] != "Region" {
		t.Errorf("expected sorted columns [Age Region], got %v", cols)
	}
	if spec.IsEmpty() || spec.Len() != 2 {
		t.Error("spec reports wrong size")
	}

	got, ok := spec.Get("Region")
	if !ok {
		t.Fatal("Region constraint missing")
	}
	if allowed := got.Allowed(); len(allowed) != 2 || allowed[0] != "N" || allowed[1] != "S" {
		t.Errorf("expected sorted allow-list [N S], got %v", allowed)
	}
}
