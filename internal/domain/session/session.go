// Package session defines the generation session aggregate. A session
// binds an ingested source dataset to a fitted generative model and
// accumulates the artifacts produced from it.
package session

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// Model is a generative model fitted to a session's source data.
type Model interface {
	Sample(ctx context.Context, n int) (dataset.Dataset, error)
}

// Session is the generation session aggregate (immutable value object).
type Session struct {
	id         string
	backend    string
	schema     dataset.Schema
	sourceRows int
	createdAt  time.Time
	artifacts  []string
	lastSpec   constraint.Spec
}

// New validates and creates a Session. The "original" artifact is
// registered from the start.
func New(id, backend string, schema dataset.Schema, sourceRows int) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	if backend == "" {
		return Session{}, fmt.Errorf("session backend is required")
	}
	if schema.Len() == 0 {
		return Session{}, fmt.Errorf("session schema is empty")
	}
	if sourceRows <= 0 {
		return Session{}, fmt.Errorf("session needs at least one source row")
	}
	return Session{
		id:         id,
		backend:    backend,
		schema:     schema,
		sourceRows: sourceRows,
		createdAt:  time.Now().UTC(),
		artifacts:  []string{ArtifactOriginal},
	}, nil
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(
	id, backend string, schema dataset.Schema, sourceRows int,
	createdAt time.Time, artifacts []string, lastSpec constraint.Spec,
) Session {
	return Session{
		id:         id,
		backend:    backend,
		schema:     schema,
		sourceRows: sourceRows,
		createdAt:  createdAt,
		artifacts:  artifacts,
		lastSpec:   lastSpec,
	}
}

// Well-known artifact names within a session.
const (
	ArtifactOriginal  = "original"
	ArtifactSynthetic = "synthetic"
	ArtifactCombined  = "combined"
)

// ID returns the session identifier.
func (s Session) ID() string { return s.id }

// Backend returns the model backend name the session was created with.
func (s Session) Backend() string { return s.backend }

// Schema returns the source dataset schema.
func (s Session) Schema() dataset.Schema { return s.schema }

// SourceRows returns the ingested source row count.
func (s Session) SourceRows() int { return s.sourceRows }

// CreatedAt returns the creation time (UTC).
func (s Session) CreatedAt() time.Time { return s.createdAt }

// Artifacts returns the dataset artifact names available for download.
func (s Session) Artifacts() []string {
	return slices.Clone(s.artifacts)
}

// HasArtifact reports whether an artifact name is registered.
func (s Session) HasArtifact(name string) bool {
	return slices.Contains(s.artifacts, name)
}

// LastSpec returns the constraint spec of the most recent generation.
func (s Session) LastSpec() constraint.Spec { return s.lastSpec }

// WithGeneration returns a copy that records a completed generation:
// the constraint spec used and the artifacts it produced.
func (s Session) WithGeneration(spec constraint.Spec, artifacts ...string) Session {
	next := s
	next.lastSpec = spec
	next.artifacts = slices.Clone(s.artifacts)
	for _, a := range artifacts {
		if !slices.Contains(next.artifacts, a) {
			next.artifacts = append(next.artifacts, a)
		}
	}
	return next
}
