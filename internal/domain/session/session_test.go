package session

import (
	"testing"

	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

func testSchema(t *testing.T) dataset.Schema {
	t.Helper()
	age, err := dataset.NewColumn("Age", dataset.Numeric)
	if err != nil {
		t.Fatalf("NewColumn: %v", err)
	}
	schema, err := dataset.NewSchema([]dataset.Column{age})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return schema
}

func TestNew(t *testing.T) {
	schema := testSchema(t)

	s, err := New("sess-1", "empirical", schema, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.ID() != "sess-1" || s.Backend() != "empirical" || s.SourceRows() != 10 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.HasArtifact(ArtifactOriginal) {
		t.Errorf("new session should register the original artifact")
	}
	if s.CreatedAt().IsZero() {
		t.Errorf("CreatedAt not set")
	}
}

func TestNew_Validation(t *testing.T) {
	schema := testSchema(t)

	cases := []struct {
		name    string
		id      string
		backend string
		rows    int
	}{
		{"empty id", "", "empirical", 10},
		{"empty backend", "sess-1", "", 10},
		{"zero rows", "sess-1", "empirical", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.id, tc.backend, schema, tc.rows); err == nil {
				t.Fatalf("New succeeded, want error")
			}
		})
	}

	if _, err := New("sess-1", "empirical", dataset.Schema{}, 10); err == nil {
		t.Fatalf("New with empty schema succeeded, want error")
	}
}

func TestWithGeneration(t *testing.T) {
	s, err := New("sess-1", "empirical", testSchema(t), 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c, err := constraint.NewNumeric(18, 65)
	if err != nil {
		t.Fatalf("NewNumeric: %v", err)
	}
	spec := constraint.NewSpec(map[string]constraint.Constraint{"Age": c})

	got := s.WithGeneration(spec, ArtifactSynthetic, ArtifactCombined)

	if !got.HasArtifact(ArtifactSynthetic) || !got.HasArtifact(ArtifactCombined) {
		t.Fatalf("artifacts not registered: %v", got.Artifacts())
	}
	if got.LastSpec().Len() != 1 {
		t.Errorf("LastSpec not recorded")
	}

	// The receiver stays untouched.
	if s.HasArtifact(ArtifactSynthetic) {
		t.Errorf("WithGeneration mutated the receiver")
	}

	// Repeat registration does not duplicate.
	again := got.WithGeneration(spec, ArtifactSynthetic)
	if len(again.Artifacts()) != len(got.Artifacts()) {
		t.Errorf("duplicate artifact registered: %v", again.Artifacts())
	}
}
