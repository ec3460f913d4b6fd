package chi

import (
	"fmt"
	"math"
	"time"

	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	domsession "github.com/tabsynth/tabsynth/internal/domain/session"
	"github.com/tabsynth/tabsynth/internal/usecase/fieldgen"
)

// Error codes returned to the client.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeValidationFailed = "validation_failed"
	codeSessionNotFound  = "session_not_found"
	codeDatasetNotFound  = "dataset_not_found"
	codeSchemaMismatch   = "schema_mismatch"
	codeUnsatisfiable    = "constraint_unsatisfiable"
	codeModelError       = "model_error"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ColumnDTO describes one schema column.
type ColumnDTO struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// SessionResponse describes a generation session.
type SessionResponse struct {
	ID         string      `json:"id"`
	Backend    string      `json:"backend"`
	CreatedAt  time.Time   `json:"created_at"`
	SourceRows int         `json:"source_rows"`
	Columns    []ColumnDTO `json:"columns"`
	Artifacts  []string    `json:"artifacts"`
}

// SessionListResponse wraps the session listing.
type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
	Total int               `json:"total"`
}

// ConstraintDTO narrows one column. Numeric constraints carry min
// and/or max; categorical constraints carry the allowed labels.
type ConstraintDTO struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

// GenerateRequest asks for synthetic rows in a session.
type GenerateRequest struct {
	Rows        int                      `json:"rows"`
	Combine     bool                     `json:"combine"`
	Constraints map[string]ConstraintDTO `json:"constraints"`
}

// GenerateResponse summarizes a finished generation.
type GenerateResponse struct {
	Session SessionResponse `json:"session"`
	Rows    int             `json:"rows"`
	Rounds  int             `json:"rounds"`
	Sampled int             `json:"sampled"`
}

// RuleDTO narrows one generated field: a named option or, for date
// fields, a custom 2006-01-02 range.
type RuleDTO struct {
	Choice string `json:"choice,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// FieldGenRequest asks for rule-based customer records.
type FieldGenRequest struct {
	Fields  []string           `json:"fields"`
	Records int                `json:"records"`
	Rules   map[string]RuleDTO `json:"rules"`
}

// FieldGenResponse carries the generated records inline.
type FieldGenResponse struct {
	Records []map[string]any `json:"records"`
	Count   int              `json:"count"`
}

// HealthResponse reports aggregated component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func sessionToDTO(s domsession.Session) SessionResponse {
	cols := make([]ColumnDTO, 0, s.Schema().Len())
	for _, c := range s.Schema().Columns() {
		cols = append(cols, ColumnDTO{Name: c.Name(), Kind: string(c.Kind())})
	}
	return SessionResponse{
		ID:         s.ID(),
		Backend:    s.Backend(),
		CreatedAt:  s.CreatedAt(),
		SourceRows: s.SourceRows(),
		Columns:    cols,
		Artifacts:  s.Artifacts(),
	}
}

func specFromDTO(dtos map[string]ConstraintDTO) (constraint.Spec, error) {
	if len(dtos) == 0 {
		return constraint.Spec{}, nil
	}
	constraints := make(map[string]constraint.Constraint, len(dtos))
	for col, dto := range dtos {
		c, err := constraintFromDTO(dto)
		if err != nil {
			return constraint.Spec{}, fmt.Errorf("column %q: %w", col, err)
		}
		constraints[col] = c
	}
	return constraint.NewSpec(constraints), nil
}

func constraintFromDTO(dto ConstraintDTO) (constraint.Constraint, error) {
	hasBounds := dto.Min != nil || dto.Max != nil
	if hasBounds && len(dto.Allowed) > 0 {
		return constraint.Constraint{}, fmt.Errorf("bounds and allowed labels are mutually exclusive")
	}
	if len(dto.Allowed) > 0 {
		return constraint.NewCategorical(dto.Allowed)
	}
	if !hasBounds {
		return constraint.Constraint{}, fmt.Errorf("constraint needs bounds or allowed labels")
	}
	min, max := math.Inf(-1), math.Inf(1)
	if dto.Min != nil {
		min = *dto.Min
	}
	if dto.Max != nil {
		max = *dto.Max
	}
	return constraint.NewNumeric(min, max)
}

func rulesFromDTO(dtos map[string]RuleDTO) (map[fieldgen.Field]fieldgen.Rule, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	rules := make(map[fieldgen.Field]fieldgen.Rule, len(dtos))
	for f, dto := range dtos {
		rule := fieldgen.Rule{Choice: dto.Choice}
		if dto.Start != "" || dto.End != "" {
			start, err := time.Parse("2006-01-02", dto.Start)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad start date: %w", f, err)
			}
			end, err := time.Parse("2006-01-02", dto.End)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad end date: %w", f, err)
			}
			rule.Start, rule.End = start, end
		}
		rules[fieldgen.Field(f)] = rule
	}
	return rules, nil
}

func rowsToJSON(ds dataset.Dataset) []map[string]any {
	out := make([]map[string]any, 0, ds.Len())
	for _, row := range ds.Rows() {
		obj := make(map[string]any, ds.Schema().Len())
		for _, col := range ds.Schema().Columns() {
			v := row[col.Name()]
			switch {
			case v.IsNull():
				obj[col.Name()] = nil
			case col.Kind() == dataset.Numeric:
				f, _ := v.Float()
				obj[col.Name()] = f
			default:
				obj[col.Name()] = v.String()
			}
		}
		out = append(out, obj)
	}
	return out
}
