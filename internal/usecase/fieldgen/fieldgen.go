// Package fieldgen implements rule-based customer record generation:
// a fixed catalog of fields, each with a closed constraint vocabulary,
// filled with fabricated values.
package fieldgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// Field names the generatable record fields.
type Field string

const (
	FieldCustomerID     Field = "Customer_ID"
	FieldName           Field = "Name"
	FieldAge            Field = "Age"
	FieldEmail          Field = "Email"
	FieldGender         Field = "Gender"
	FieldMaritalStatus  Field = "Marital Status"
	FieldDisability     Field = "Disability"
	FieldHospitalVisits Field = "Hospital Visits"
	FieldPolicyStart    Field = "Policy Start Date"
	FieldPolicyEnd      Field = "Policy End Date"
)

// Fields lists the catalog in its canonical order.
func Fields() []Field {
	return []Field{
		FieldCustomerID, FieldName, FieldAge, FieldEmail, FieldGender,
		FieldMaritalStatus, FieldDisability, FieldHospitalVisits,
		FieldPolicyStart, FieldPolicyEnd,
	}
}

// Rule narrows a field's value range. Choice picks a named option from
// the field's vocabulary; date fields alternatively take a custom
// Start/End range.
type Rule struct {
	Choice string
	Start  time.Time
	End    time.Time
}

func (r Rule) isCustomRange() bool {
	return !r.Start.IsZero() || !r.End.IsZero()
}

// Option vocabularies, checked before any row is generated.
var fieldChoices = map[Field][]string{
	FieldAge:           {"Child", "Teenager", "Young Adult", "Middle Age", "Senior"},
	FieldEmail:         {"Gmail", "Yahoo", "Hotmail"},
	FieldGender:        {"Male", "Female", "Other"},
	FieldMaritalStatus: {"Yes", "No"},
	FieldDisability:    {"Yes", "No"},
	FieldPolicyStart:   {"Last Year", "Last 2 Years", "Last 5 Years", "Next Year", "Next 2 Years", "Next 5 Years"},
	FieldPolicyEnd:     {"Last Year", "Last 2 Years", "Last 5 Years", "Next Year", "Next 2 Years", "Next 5 Years"},
}

var disabilities = []string{"None", "Physical", "Visual", "Hearing", "Cognitive", "Chronic Condition"}

// disabilityWeights is the cumulative distribution over disabilities
// when no rule applies (70% none).
var disabilityWeights = []int{70, 80, 85, 90, 95, 100}

var emailDomains = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}

// Service generates customer records.
type Service struct {
	maxRecords int
	rng        *rand.Rand
	faker      *gofakeit.Faker
	logger     *zap.Logger
}

// New creates a field generator. maxRecords caps one request; seed 0
// randomizes.
func New(maxRecords int, seed uint64, logger *zap.Logger) *Service {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Service{
		maxRecords: maxRecords,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		faker:      gofakeit.New(seed),
		logger:     logger,
	}
}

// Generate produces n records with the selected fields. Numeric fields
// (age, hospital visits) come out as numbers, everything else as
// labels; dates use the 2006-01-02 layout.
func (s *Service) Generate(
	ctx context.Context, fields []Field, rules map[Field]Rule, n int,
) (dataset.Dataset, error) {
	if n <= 0 {
		return dataset.Dataset{}, fmt.Errorf("%w: record count must be positive, got %d", domain.ErrInvalidConstraint, n)
	}
	if n > s.maxRecords {
		return dataset.Dataset{}, fmt.Errorf("%w: record count %d exceeds limit %d", domain.ErrInvalidConstraint, n, s.maxRecords)
	}
	schema, err := buildSchema(fields)
	if err != nil {
		return dataset.Dataset{}, err
	}
	if err := checkRules(rules); err != nil {
		return dataset.Dataset{}, err
	}

	ds := dataset.New(schema)
	for i := 0; i < n; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return dataset.Dataset{}, fmt.Errorf("generation aborted: %w", err)
			}
		}
		ds.Append(s.record(fields, rules))
	}

	s.logger.Info("field generation finished",
		zap.Int("records", n),
		zap.Int("fields", len(fields)),
		zap.Int("rules", len(rules)),
	)
	return ds, nil
}

func buildSchema(fields []Field) (dataset.Schema, error) {
	if len(fields) == 0 {
		return dataset.Schema{}, fmt.Errorf("%w: no fields selected", domain.ErrInvalidConstraint)
	}
	known := make(map[Field]bool, len(Fields()))
	for _, f := range Fields() {
		known[f] = true
	}

	cols := make([]dataset.Column, 0, len(fields))
	for _, f := range fields {
		if !known[f] {
			return dataset.Schema{}, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidConstraint, f)
		}
		kind := dataset.Categorical
		if f == FieldAge || f == FieldHospitalVisits {
			kind = dataset.Numeric
		}
		col, err := dataset.NewColumn(string(f), kind)
		if err != nil {
			return dataset.Schema{}, err
		}
		cols = append(cols, col)
	}
	schema, err := dataset.NewSchema(cols)
	if err != nil {
		return dataset.Schema{}, fmt.Errorf("%w: %w", domain.ErrInvalidConstraint, err)
	}
	return schema, nil
}

func checkRules(rules map[Field]Rule) error {
	for f, r := range rules {
		choices, ok := fieldChoices[f]
		if !ok {
			return fmt.Errorf("%w: field %q takes no rule", domain.ErrInvalidConstraint, f)
		}
		if r.isCustomRange() {
			if f != FieldPolicyStart && f != FieldPolicyEnd {
				return fmt.Errorf("%w: field %q takes no date range", domain.ErrInvalidConstraint, f)
			}
			if r.Choice != "" {
				return fmt.Errorf("%w: field %q has both a choice and a date range", domain.ErrInvalidConstraint, f)
			}
			if !r.End.After(r.Start) {
				return fmt.Errorf("%w: empty date range for field %q", domain.ErrInvalidConstraint, f)
			}
			continue
		}
		valid := false
		for _, c := range choices {
			if r.Choice == c {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: field %q has no option %q", domain.ErrInvalidConstraint, f, r.Choice)
		}
	}
	return nil
}

func (s *Service) record(fields []Field, rules map[Field]Rule) dataset.Row {
	row := make(dataset.Row, len(fields))
	for _, f := range fields {
		rule := rules[f]
		switch f {
		case FieldCustomerID:
			row[string(f)] = dataset.Label(fmt.Sprintf("CUST-%04d", 1000+s.rng.IntN(9000)))
		case FieldName:
			row[string(f)] = dataset.Label(s.faker.Name())
		case FieldAge:
			row[string(f)] = dataset.Number(float64(s.age(rule.Choice)))
		case FieldEmail:
			row[string(f)] = dataset.Label(s.email(row, rule.Choice))
		case FieldGender:
			row[string(f)] = dataset.Label(s.gender(rule.Choice))
		case FieldMaritalStatus:
			row[string(f)] = dataset.Label(s.maritalStatus(rule.Choice))
		case FieldDisability:
			row[string(f)] = dataset.Label(s.disability(rule.Choice))
		case FieldHospitalVisits:
			row[string(f)] = dataset.Number(float64(s.rng.IntN(11)))
		case FieldPolicyStart, FieldPolicyEnd:
			row[string(f)] = dataset.Label(s.policyDate(rule).Format("2006-01-02"))
		}
	}
	return row
}

func (s *Service) age(choice string) int {
	lo, hi := 1, 85
	switch choice {
	case "Child":
		lo, hi = 1, 12
	case "Teenager":
		lo, hi = 13, 19
	case "Young Adult":
		lo, hi = 20, 35
	case "Middle Age":
		lo, hi = 36, 55
	case "Senior":
		lo, hi = 56, 85
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// email derives the local part from the record's name, fabricating one
// when the name field was not selected.
func (s *Service) email(row dataset.Row, choice string) string {
	name := s.faker.Name()
	if v, ok := row[string(FieldName)]; ok {
		if text, ok := v.Text(); ok {
			name = text
		}
	}
	local := strings.ReplaceAll(strings.ToLower(name), " ", ".")

	domains := emailDomains
	switch choice {
	case "Gmail":
		domains = emailDomains[:1]
	case "Yahoo":
		domains = emailDomains[1:2]
	case "Hotmail":
		domains = emailDomains[2:3]
	}
	return local + "@" + domains[s.rng.IntN(len(domains))]
}

func (s *Service) gender(choice string) string {
	if choice != "" {
		return choice
	}
	return []string{"Male", "Female", "Other"}[s.rng.IntN(3)]
}

func (s *Service) maritalStatus(choice string) string {
	switch choice {
	case "Yes":
		return []string{"Married", "Divorced", "Widowed"}[s.rng.IntN(3)]
	case "No":
		return "Single"
	}
	return []string{"Single", "Married", "Divorced", "Widowed"}[s.rng.IntN(4)]
}

func (s *Service) disability(choice string) string {
	switch choice {
	case "Yes":
		return disabilities[1+s.rng.IntN(len(disabilities)-1)]
	case "No":
		return disabilities[0]
	}
	p := s.rng.IntN(100)
	for i, cum := range disabilityWeights {
		if p < cum {
			return disabilities[i]
		}
	}
	return disabilities[0]
}

func (s *Service) policyDate(rule Rule) time.Time {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start, end := today.AddDate(0, 0, -1825), today.AddDate(0, 0, 1825)

	switch {
	case rule.isCustomRange():
		start, end = rule.Start, rule.End
	case rule.Choice == "Last Year":
		start, end = today.AddDate(0, 0, -365), today
	case rule.Choice == "Last 2 Years":
		start, end = today.AddDate(0, 0, -730), today
	case rule.Choice == "Last 5 Years":
		start, end = today.AddDate(0, 0, -1825), today
	case rule.Choice == "Next Year":
		start, end = today, today.AddDate(0, 0, 365)
	case rule.Choice == "Next 2 Years":
		start, end = today, today.AddDate(0, 0, 730)
	case rule.Choice == "Next 5 Years":
		start, end = today, today.AddDate(0, 0, 1825)
	}

	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return start
	}
	return start.AddDate(0, 0, s.rng.IntN(days))
}
