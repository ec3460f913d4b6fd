package constraint

import "github.com/tabsynth/tabsynth/internal/domain/dataset"

// Report holds the outcome of validating a batch: one boolean mask per
// constrained column plus the combined AND mask. Immutable after
// construction.
type Report struct {
	columns  map[string][]bool
	combined []bool
}

// Validate partitions rows into passing and violating positions.
// Constraints are evaluated jointly: a position passes the combined
// mask only if every constrained column holds simultaneously.
// Pure function of its inputs; no side effects.
func Validate(rows dataset.Dataset, spec Spec) Report {
	n := rows.Len()
	combined := make([]bool, n)
	for i := range combined {
		combined[i] = true
	}

	columns := make(map[string][]bool, spec.Len())
	for _, col := range spec.Columns() {
		c, _ := spec.Get(col)
		mask := make([]bool, n)
		for i := 0; i < n; i++ {
			mask[i] = c.Satisfied(rows.Row(i)[col])
			combined[i] = combined[i] && mask[i]
		}
		columns[col] = mask
	}

	return Report{columns: columns, combined: combined}
}

// Combined returns the logical AND across all constrained columns.
func (r Report) Combined() []bool { return r.combined }

// Column returns the per-column mask, if the column is constrained.
func (r Report) Column(name string) ([]bool, bool) {
	m, ok := r.columns[name]
	return m, ok
}

// PassCount returns the number of positions passing the combined mask.
func (r Report) PassCount() int {
	n := 0
	for _, ok := range r.combined {
		if ok {
			n++
		}
	}
	return n
}
