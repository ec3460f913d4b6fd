// Package dataset holds the tabular data model: typed scalar values,
// rows, column schemas, and datasets produced by ingestion and sampling.
package dataset

import (
	"fmt"
	"strconv"

	"github.com/tabsynth/tabsynth/internal/domain"
)

// Kind is the value kind of a column.
type Kind string

// Column kinds.
const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Column is an immutable value object describing one dataset column.
type Column struct {
	name string
	kind Kind
}

// NewColumn validates and creates a Column.
// Name must be non-empty, max 128 chars. Kind must be numeric or categorical.
func NewColumn(name string, kind Kind) (Column, error) {
	if name == "" {
		return Column{}, fmt.Errorf("column name is required")
	}
	if len(name) > 128 {
		return Column{}, fmt.Errorf("column name %q too long (max 128)", name)
	}
	if kind != Numeric && kind != Categorical {
		return Column{}, fmt.Errorf("invalid column kind %q for %q", kind, name)
	}
	return Column{name: name, kind: kind}, nil
}

// ReconstructColumn creates a Column without validation (storage hydration).
func ReconstructColumn(name string, kind Kind) Column {
	return Column{name: name, kind: kind}
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Kind returns the column value kind.
func (c Column) Kind() Kind { return c.kind }

// Schema is the fixed column layout of a dataset. It is derived once
// from the source and immutable for the lifetime of a generation session.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema validates and creates a Schema. Column names must be unique.
func NewSchema(columns []Column) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, fmt.Errorf("schema requires at least one column")
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.name]; dup {
			return Schema{}, fmt.Errorf("duplicate column %q", c.name)
		}
		index[c.name] = i
	}
	return Schema{columns: columns, index: index}, nil
}

// Columns returns the columns in declaration order.
func (s Schema) Columns() []Column { return s.columns }

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// ColumnByName looks up a column by name.
func (s Schema) ColumnByName(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// SameColumns reports whether two schemas carry the same column set
// with the same kinds. Column order is not significant.
func (s Schema) SameColumns(other Schema) bool {
	if len(s.columns) != len(other.columns) {
		return false
	}
	for _, c := range s.columns {
		oc, ok := other.ColumnByName(c.name)
		if !ok || oc.kind != c.kind {
			return false
		}
	}
	return true
}

type valueKind uint8

const (
	nullValue valueKind = iota
	numberValue
	labelValue
)

// Value is a typed scalar cell: a number, a categorical label, or null.
type Value struct {
	kind valueKind
	num  float64
	str  string
}

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: numberValue, num: f} }

// Label creates a categorical value.
func Label(s string) Value { return Value{kind: labelValue, str: s} }

// Null creates a missing value.
func Null() Value { return Value{} }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.kind == nullValue }

// Float returns the numeric value, if any.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == numberValue
}

// Text returns the categorical label, if any.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == labelValue
}

// String renders the value for serialization. Null renders as empty.
func (v Value) String() string {
	switch v.kind {
	case numberValue:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case labelValue:
		return v.str
	default:
		return ""
	}
}

// Row maps column names to cell values.
type Row map[string]Value

// Dataset is an ordered sequence of rows sharing a fixed schema.
type Dataset struct {
	schema Schema
	rows   []Row
}

// New creates an empty dataset with the given schema.
func New(schema Schema) Dataset {
	return Dataset{schema: schema}
}

// FromRows creates a dataset from pre-built rows.
func FromRows(schema Schema, rows []Row) Dataset {
	return Dataset{schema: schema, rows: rows}
}

// Schema returns the dataset schema.
func (d Dataset) Schema() Schema { return d.schema }

// Len returns the row count.
func (d Dataset) Len() int { return len(d.rows) }

// Rows returns the backing row slice.
func (d Dataset) Rows() []Row { return d.rows }

// Row returns the row at position i.
func (d Dataset) Row(i int) Row { return d.rows[i] }

// Append adds rows to the dataset.
func (d *Dataset) Append(rows ...Row) {
	d.rows = append(d.rows, rows...)
}

// Combine concatenates original and synthetic into a new dataset,
// original rows first. Both datasets must carry the same column set;
// no deduplication is applied. The result is never mutated afterwards
// by this package.
func Combine(original, synthetic Dataset) (Dataset, error) {
	if !original.schema.SameColumns(synthetic.schema) {
		return Dataset{}, fmt.Errorf("combine datasets: %w", domain.ErrSchemaMismatch)
	}
	rows := make([]Row, 0, len(original.rows)+len(synthetic.rows))
	rows = append(rows, original.rows...)
	rows = append(rows, synthetic.rows...)
	return Dataset{schema: original.schema, rows: rows}, nil
}
