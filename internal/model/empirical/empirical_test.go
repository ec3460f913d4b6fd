package empirical

import (
	"context"
	"errors"
	"testing"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

func sourceDataset(t *testing.T) dataset.Dataset {
	t.Helper()
	schema, err := dataset.NewSchema([]dataset.Column{
		dataset.ReconstructColumn("Age", dataset.Numeric),
		dataset.ReconstructColumn("Region", dataset.Categorical),
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	ds := dataset.New(schema)
	regions := []string{"N", "S", "E", "W"}
	for i := 0; i < 40; i++ {
		ds.Append(dataset.Row{
			"Age":    dataset.Number(float64(18 + i)),
			"Region": dataset.Label(regions[i%len(regions)]),
		})
	}
	return ds
}

func TestFitSample_SchemaAndCount(t *testing.T) {
	m := New(WithSeed(42))
	source := sourceDataset(t)

	if err := m.Fit(context.Background(), source, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := m.Sample(context.Background(), 100)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out.Len() != 100 {
		t.Fatalf("expected 100 rows, got %d", out.Len())
	}
	if !out.Schema().SameColumns(source.Schema()) {
		t.Error("sampled schema differs from source schema")
	}

	for i, row := range out.Rows() {
		age, ok := row["Age"].Float()
		if !ok {
			t.Fatalf("row %d: Age is not numeric", i)
		}
		// Observed range widened by a little jitter only.
		if age < 0 || age > 120 {
			t.Errorf("row %d: implausible Age %v", i, age)
		}
		region, ok := row["Region"].Text()
		if !ok {
			t.Fatalf("row %d: Region is not categorical", i)
		}
		switch region {
		case "N", "S", "E", "W":
		default:
			t.Errorf("row %d: unseen Region label %q", i, region)
		}
	}
}

func TestSample_DeterministicUnderSeed(t *testing.T) {
	source := sourceDataset(t)

	a := New(WithSeed(7))
	b := New(WithSeed(7))
	if err := a.Fit(context.Background(), source, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if err := b.Fit(context.Background(), source, nil); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	ra, err := a.Sample(context.Background(), 25)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	rb, err := b.Sample(context.Background(), 25)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	for i := 0; i < 25; i++ {
		if ra.Row(i)["Age"] != rb.Row(i)["Age"] || ra.Row(i)["Region"] != rb.Row(i)["Region"] {
			t.Fatalf("row %d differs between identically seeded models", i)
		}
	}
}

func TestFit_DiscreteHintDisablesJitter(t *testing.T) {
	m := New(WithSeed(9))
	source := sourceDataset(t)

	if err := m.Fit(context.Background(), source, []string{"Age"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	out, err := m.Sample(context.Background(), 200)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for i, row := range out.Rows() {
		age, _ := row["Age"].Float()
		if age != float64(int(age)) || age < 18 || age > 57 {
			t.Fatalf("row %d: discrete Age must be an observed value, got %v", i, age)
		}
	}
}

func TestFit_EmptySource(t *testing.T) {
	m := New(WithSeed(1))
	schema, _ := dataset.NewSchema([]dataset.Column{dataset.ReconstructColumn("Age", dataset.Numeric)})

	err := m.Fit(context.Background(), dataset.New(schema), nil)
	if !errors.Is(err, domain.ErrModelTraining) {
		t.Fatalf("expected ErrModelTraining, got %v", err)
	}
}

func TestFit_UnknownCategoricalColumn(t *testing.T) {
	m := New(WithSeed(1))

	err := m.Fit(context.Background(), sourceDataset(t), []string{"Income"})
	if !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSample_BeforeFit(t *testing.T) {
	m := New(WithSeed(1))

	_, err := m.Sample(context.Background(), 10)
	if !errors.Is(err, domain.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}
