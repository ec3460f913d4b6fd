// Package model selects and fits generative model backends.
package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	domsession "github.com/tabsynth/tabsynth/internal/domain/session"
	"github.com/tabsynth/tabsynth/internal/model/empirical"
	"github.com/tabsynth/tabsynth/internal/model/llm"
)

// Backend names.
const (
	BackendEmpirical = "empirical"
	BackendLLM       = "llm"
)

// Factory builds a fitted model per session.
type Factory struct {
	defaultBackend string
	seed           uint64
	llmCfg         *llm.Config
	logger         *zap.Logger
}

// NewFactory creates a backend factory. llmCfg nil disables the llm
// backend; seed 0 randomizes the empirical backend.
func NewFactory(defaultBackend string, seed uint64, llmCfg *llm.Config, logger *zap.Logger) *Factory {
	if defaultBackend == "" {
		defaultBackend = BackendEmpirical
	}
	return &Factory{
		defaultBackend: defaultBackend,
		seed:           seed,
		llmCfg:         llmCfg,
		logger:         logger,
	}
}

// Fit constructs the named backend and trains it on source. An empty
// backend name selects the configured default.
func (f *Factory) Fit(
	ctx context.Context, backend string, source dataset.Dataset, categorical []string,
) (domsession.Model, error) {
	if backend == "" {
		backend = f.defaultBackend
	}

	switch backend {
	case BackendEmpirical:
		var opts []empirical.Option
		if f.seed != 0 {
			opts = append(opts, empirical.WithSeed(f.seed))
		}
		m := empirical.New(opts...)
		if err := m.Fit(ctx, source, categorical); err != nil {
			return nil, err
		}
		return m, nil

	case BackendLLM:
		if f.llmCfg == nil {
			return nil, fmt.Errorf("%w: llm backend not configured", domain.ErrUnknownBackend)
		}
		m := llm.New(f.llmCfg)
		if err := m.Fit(ctx, source, categorical); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, backend)
}
