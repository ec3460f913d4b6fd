package session

import (
	"context"

	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	domsession "github.com/tabsynth/tabsynth/internal/domain/session"
	"github.com/tabsynth/tabsynth/internal/usecase/sampler"
)

// Repository defines the storage contract for sessions and their
// fitted models.
type Repository interface {
	Save(ctx context.Context, sess domsession.Session, model domsession.Model) error
	Get(ctx context.Context, id string) (domsession.Session, domsession.Model, error)
	List(ctx context.Context) ([]domsession.Session, error)
	Delete(ctx context.Context, id string) error
}

// ArtifactStore persists dataset artifacts. Artifact names are scoped
// per session as "<id>/<artifact>".
type ArtifactStore interface {
	Save(name string, ds dataset.Dataset) error
	Load(name string) (dataset.Dataset, error)
	DeleteGroup(group string) error
}

// ModelFactory fits a generative model of the named backend to the
// source data. Columns listed in categorical are treated as discrete
// even when their values are numeric.
type ModelFactory interface {
	Fit(ctx context.Context, backend string, source dataset.Dataset, categorical []string) (domsession.Model, error)
}

// Sampler runs the constrained sampling loop.
type Sampler interface {
	Generate(ctx context.Context, model sampler.Model, schema dataset.Schema, spec constraint.Spec, n int) (sampler.Result, error)
}
