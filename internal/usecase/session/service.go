// Package session orchestrates generation sessions: ingesting source
// data, fitting a model, running constrained generation and managing
// the produced artifacts.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	domsession "github.com/tabsynth/tabsynth/internal/domain/session"
)

// Generation is the outcome of one generate call.
type Generation struct {
	Session     domsession.Session
	Synthetic   dataset.Dataset
	Combined    dataset.Dataset
	HasCombined bool
	Rounds      int
	Sampled     int
}

// Service handles session lifecycle and generation.
type Service struct {
	repo      Repository
	artifacts ArtifactStore
	models    ModelFactory
	sampler   Sampler
	logger    *zap.Logger
}

// New creates a session service.
func New(repo Repository, artifacts ArtifactStore, models ModelFactory, smp Sampler, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		artifacts: artifacts,
		models:    models,
		sampler:   smp,
		logger:    logger,
	}
}

// Create ingests a source dataset, fits the backend model to it and
// opens a session. The source is persisted as the "original" artifact.
func (s *Service) Create(
	ctx context.Context, backend string, source dataset.Dataset, categorical []string,
) (domsession.Session, error) {
	if source.Len() == 0 {
		return domsession.Session{}, fmt.Errorf("%w: source dataset is empty", domain.ErrModelTraining)
	}

	model, err := s.models.Fit(ctx, backend, source, categorical)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("fit %s model: %w", backend, err)
	}

	sess, err := domsession.New(uuid.NewString(), backend, source.Schema(), source.Len())
	if err != nil {
		return domsession.Session{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.artifacts.Save(artifactName(sess.ID(), domsession.ArtifactOriginal), source); err != nil {
		return domsession.Session{}, fmt.Errorf("persist source: %w", err)
	}
	if err := s.repo.Save(ctx, sess, model); err != nil {
		return domsession.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("session created",
		zap.String("session_id", sess.ID()),
		zap.String("backend", backend),
		zap.Int("source_rows", source.Len()),
		zap.Int("columns", source.Schema().Len()),
	)
	return sess, nil
}

// Generate produces n constrained synthetic rows in an existing
// session. The result is persisted as the "synthetic" artifact; with
// combine set, the original rows followed by the synthetic rows are
// also persisted as "combined".
//
// When the sampling budget is exhausted the partially accepted rows
// are still persisted and returned, alongside an error wrapping
// domain.ErrConstraintUnsatisfiable.
func (s *Service) Generate(
	ctx context.Context, id string, spec constraint.Spec, n int, combine bool,
) (Generation, error) {
	sess, model, err := s.repo.Get(ctx, id)
	if err != nil {
		return Generation{}, fmt.Errorf("get session: %w", err)
	}

	res, genErr := s.sampler.Generate(ctx, model, sess.Schema(), spec, n)
	if genErr != nil && !errors.Is(genErr, domain.ErrConstraintUnsatisfiable) {
		return Generation{}, fmt.Errorf("generate: %w", genErr)
	}

	gen := Generation{
		Synthetic: res.Rows(),
		Rounds:    res.Rounds(),
		Sampled:   res.Sampled(),
	}
	produced := []string{domsession.ArtifactSynthetic}

	if err := s.artifacts.Save(artifactName(id, domsession.ArtifactSynthetic), gen.Synthetic); err != nil {
		return Generation{}, fmt.Errorf("persist synthetic rows: %w", err)
	}

	if combine {
		original, err := s.artifacts.Load(artifactName(id, domsession.ArtifactOriginal))
		if err != nil {
			return Generation{}, fmt.Errorf("load original rows: %w", err)
		}
		combined, err := dataset.Combine(original, gen.Synthetic)
		if err != nil {
			return Generation{}, fmt.Errorf("combine datasets: %w", err)
		}
		if err := s.artifacts.Save(artifactName(id, domsession.ArtifactCombined), combined); err != nil {
			return Generation{}, fmt.Errorf("persist combined rows: %w", err)
		}
		gen.Combined = combined
		gen.HasCombined = true
		produced = append(produced, domsession.ArtifactCombined)
	}

	sess = sess.WithGeneration(spec, produced...)
	if err := s.repo.Save(ctx, sess, model); err != nil {
		return Generation{}, fmt.Errorf("save session: %w", err)
	}
	gen.Session = sess

	s.logger.Info("generation finished",
		zap.String("session_id", id),
		zap.Int("requested", n),
		zap.Int("produced", gen.Synthetic.Len()),
		zap.Int("rounds", gen.Rounds),
		zap.Int("sampled", gen.Sampled),
		zap.Bool("combined", combine),
		zap.Bool("unsatisfiable", genErr != nil),
	)
	return gen, genErr
}

// Get retrieves a session by id.
func (s *Service) Get(ctx context.Context, id string) (domsession.Session, error) {
	sess, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// List returns all open sessions.
func (s *Service) List(ctx context.Context) ([]domsession.Session, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Delete closes a session and removes its artifacts.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.artifacts.DeleteGroup(id); err != nil {
		return fmt.Errorf("delete session artifacts: %w", err)
	}
	return nil
}

// Dataset loads a named artifact of a session.
func (s *Service) Dataset(ctx context.Context, id, artifact string) (dataset.Dataset, error) {
	sess, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("get session: %w", err)
	}
	if !sess.HasArtifact(artifact) {
		return dataset.Dataset{}, fmt.Errorf("artifact %s: %w", artifact, domain.ErrDatasetNotFound)
	}
	ds, err := s.artifacts.Load(artifactName(id, artifact))
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("load artifact: %w", err)
	}
	return ds, nil
}

func artifactName(id, artifact string) string {
	return id + "/" + artifact
}
