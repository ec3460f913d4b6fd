// Package constraint defines per-column acceptance predicates for
// synthetic rows and their validation against sampled batches.
package constraint

import (
	"fmt"
	"math"
	"sort"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// Kind discriminates the constraint variant. It is resolved once at
// construction time and never re-inspected per row.
type Kind string

// Constraint kinds.
const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Constraint is a single per-column predicate: an inclusive numeric
// range or a categorical allow-list.
type Constraint struct {
	kind    Kind
	min     float64
	max     float64
	allowed map[string]struct{}
}

// NewNumeric creates an inclusive [min, max] range constraint.
// Rejects min > max and non-finite bounds.
func NewNumeric(min, max float64) (Constraint, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return Constraint{}, fmt.Errorf("%w: bounds must not be NaN", domain.ErrInvalidConstraint)
	}
	if min > max {
		return Constraint{}, fmt.Errorf("%w: min %v greater than max %v", domain.ErrInvalidConstraint, min, max)
	}
	return Constraint{kind: Numeric, min: min, max: max}, nil
}

// NewCategorical creates an allow-list constraint. The list must be
// non-empty; it is accepted verbatim, with no subset check against the
// values observed in the source column.
func NewCategorical(allowed []string) (Constraint, error) {
	if len(allowed) == 0 {
		return Constraint{}, fmt.Errorf("%w: empty allow-list", domain.ErrInvalidConstraint)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return Constraint{kind: Categorical, allowed: set}, nil
}

// Kind returns the constraint variant.
func (c Constraint) Kind() Kind { return c.kind }

// Bounds returns the inclusive numeric range. Only meaningful for
// numeric constraints.
func (c Constraint) Bounds() (min, max float64) { return c.min, c.max }

// Allowed returns the allow-list in sorted order. Only meaningful for
// categorical constraints.
func (c Constraint) Allowed() []string {
	out := make([]string, 0, len(c.allowed))
	for v := range c.allowed {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Satisfied reports whether a cell value passes the constraint.
// Missing values fail either variant.
func (c Constraint) Satisfied(v dataset.Value) bool {
	if v.IsNull() {
		return false
	}
	switch c.kind {
	case Numeric:
		f, ok := v.Float()
		return ok && f >= c.min && f <= c.max
	case Categorical:
		s, ok := v.Text()
		if !ok {
			return false
		}
		_, member := c.allowed[s]
		return member
	default:
		return false
	}
}

// Spec maps column names to constraints, at most one per column.
// Columns absent from the spec are unconstrained.
type Spec struct {
	constraints map[string]Constraint
}

// NewSpec creates a Spec from pre-validated constraints.
func NewSpec(constraints map[string]Constraint) Spec {
	copied := make(map[string]Constraint, len(constraints))
	for col, c := range constraints {
		copied[col] = c
	}
	return Spec{constraints: copied}
}

// Columns returns the constrained column names in sorted order.
func (s Spec) Columns() []string {
	out := make([]string, 0, len(s.constraints))
	for col := range s.constraints {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// Get looks up the constraint for a column.
func (s Spec) Get(column string) (Constraint, bool) {
	c, ok := s.constraints[column]
	return c, ok
}

// Len returns the number of constrained columns.
func (s Spec) Len() int { return len(s.constraints) }

// IsEmpty reports whether no columns are constrained.
func (s Spec) IsEmpty() bool { return len(s.constraints) == 0 }

// CheckSchema verifies every constrained column exists in the schema
// and that the constraint variant matches the column kind. Called
// eagerly, before any model training or sampling cost is incurred.
func (s Spec) CheckSchema(schema dataset.Schema) error {
	for _, col := range s.Columns() {
		c := s.constraints[col]
		sc, ok := schema.ColumnByName(col)
		if !ok {
			return fmt.Errorf("%w: constrained column %q not in schema", domain.ErrSchemaMismatch, col)
		}
		switch c.kind {
		case Numeric:
			if sc.Kind() != dataset.Numeric {
				return fmt.Errorf("%w: numeric constraint on categorical column %q", domain.ErrSchemaMismatch, col)
			}
		case Categorical:
			if sc.Kind() != dataset.Categorical {
				return fmt.Errorf("%w: categorical constraint on numeric column %q", domain.ErrSchemaMismatch, col)
			}
		}
	}
	return nil
}
