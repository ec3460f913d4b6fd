// Package sampler implements constrained synthetic sampling: drawing
// batches from a generative model and resampling violating positions
// until every requested row satisfies every constraint, under a bounded
// effort budget.
package sampler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/constraint"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	"github.com/tabsynth/tabsynth/internal/metrics"
)

// Policy bounds the resampling effort. An unbounded loop is a
// correctness bug when the model has near-zero mass on the constrained
// region, so exhausting any budget yields ErrConstraintUnsatisfiable.
type Policy struct {
	// MaxRounds caps replacement round-trips after the initial draw.
	MaxRounds int
	// MaxSampledRows caps cumulative rows requested from the model,
	// including the initial draw. 0 derives it from MaxSampledFactor.
	MaxSampledRows int
	// MaxSampledFactor derives MaxSampledRows as a multiple of the
	// requested count when MaxSampledRows is unset. 0 means 100.
	MaxSampledFactor int
	// MaxDuration is an optional wall-clock budget. 0 disables it.
	MaxDuration time.Duration
}

// DefaultMaxRounds is the replacement round-trip cap when unset.
const DefaultMaxRounds = 25

// DefaultMaxSampledFactor derives MaxSampledRows from the requested count.
const DefaultMaxSampledFactor = 100

func (p Policy) withDefaults(n int) Policy {
	if p.MaxRounds <= 0 {
		p.MaxRounds = DefaultMaxRounds
	}
	if p.MaxSampledFactor <= 0 {
		p.MaxSampledFactor = DefaultMaxSampledFactor
	}
	if p.MaxSampledRows <= 0 {
		p.MaxSampledRows = n * p.MaxSampledFactor
	}
	return p
}

// Result is a finished generation: the batch plus effort accounting.
type Result struct {
	rows    dataset.Dataset
	rounds  int
	sampled int
}

// NewResult assembles a Result from its parts.
func NewResult(rows dataset.Dataset, rounds, sampled int) Result {
	return Result{rows: rows, rounds: rounds, sampled: sampled}
}

// Rows returns the generated dataset. On success it holds exactly the
// requested row count; on an unsatisfiable outcome it holds the
// partially accepted batch.
func (r Result) Rows() dataset.Dataset { return r.rows }

// Rounds returns the replacement round-trips used.
func (r Result) Rounds() int { return r.rounds }

// Sampled returns the cumulative rows drawn from the model.
func (r Result) Sampled() int { return r.sampled }

// Service runs the constrained sampling loop. One Service is shared
// across sessions; the model is passed per call and each call owns its
// working batch, so invocations share no mutable state.
type Service struct {
	policy Policy
	logger *zap.Logger
}

// New creates a constrained sampler.
func New(policy Policy, logger *zap.Logger) *Service {
	return &Service{policy: policy, logger: logger}
}

// Generate produces exactly n rows satisfying every constraint in spec,
// using model as the only source of candidate rows.
//
// Constraints are evaluated jointly: a replacement row is accepted only
// if it passes the full spec, not just the column whose violation freed
// its slot. Replacement batches are sized to the deficit. Pending
// positions are tracked as their own index set and filled slot by slot,
// up to the smaller of the pending count and the number of valid
// replacements.
//
// On budget exhaustion the returned error wraps
// domain.ErrConstraintUnsatisfiable and the Result still carries the
// partially accepted rows. Cancelling ctx aborts at the next iteration
// boundary with the same partial-result contract.
func (s *Service) Generate(
	ctx context.Context, model Model, schema dataset.Schema, spec constraint.Spec, n int,
) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("row count must be positive, got %d", n)
	}
	// Fail before any model cost is incurred.
	if err := spec.CheckSchema(schema); err != nil {
		return Result{}, err
	}

	policy := s.policy.withDefaults(n)
	deadline := time.Time{}
	if policy.MaxDuration > 0 {
		deadline = time.Now().Add(policy.MaxDuration)
	}

	slots := make([]dataset.Row, n)
	pending := make([]int, n)
	for i := range pending {
		pending[i] = i
	}

	rounds := 0
	sampled := 0

	batch, err := s.draw(ctx, model, schema, n)
	if err != nil {
		return Result{}, err
	}
	sampled += n
	pending = fill(slots, pending, batch, spec)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return s.partial(schema, slots, pending, rounds, sampled),
				fmt.Errorf("sampling aborted: %w", err)
		}
		if rounds >= policy.MaxRounds || sampled >= policy.MaxSampledRows ||
			(!deadline.IsZero() && time.Now().After(deadline)) {
			return s.exhausted(schema, slots, pending, rounds, sampled, n)
		}

		k := len(pending)
		replacement, err := s.draw(ctx, model, schema, k)
		if err != nil {
			return s.partial(schema, slots, pending, rounds, sampled), err
		}
		rounds++
		sampled += k

		before := len(pending)
		pending = fill(slots, pending, replacement, spec)
		s.logger.Debug("resampling round",
			zap.Int("round", rounds),
			zap.Int("requested", k),
			zap.Int("filled", before-len(pending)),
			zap.Int("pending", len(pending)),
		)
	}

	metrics.SamplingRounds.WithLabelValues("ok").Observe(float64(rounds))
	metrics.SamplingRowsTotal.WithLabelValues("sampled").Add(float64(sampled))
	metrics.SamplingRowsTotal.WithLabelValues("accepted").Add(float64(n))
	metrics.SamplingAcceptanceRatio.Observe(float64(n) / float64(sampled))

	return Result{
		rows:    dataset.FromRows(schema, slots),
		rounds:  rounds,
		sampled: sampled,
	}, nil
}

// draw requests k rows and verifies the model honored its contract.
func (s *Service) draw(
	ctx context.Context, model Model, schema dataset.Schema, k int,
) (dataset.Dataset, error) {
	batch, err := model.Sample(ctx, k)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("%w: %w", domain.ErrModelSampling, err)
	}
	if batch.Len() != k {
		return dataset.Dataset{}, fmt.Errorf("%w: requested %d rows, model returned %d",
			domain.ErrModelSampling, k, batch.Len())
	}
	if !batch.Schema().SameColumns(schema) {
		return dataset.Dataset{}, fmt.Errorf("%w: model batch columns differ from session schema",
			domain.ErrSchemaMismatch)
	}
	return batch, nil
}

// fill validates batch against the full spec and assigns passing rows
// into pending slot positions in order. Returns the slots still pending.
func fill(slots []dataset.Row, pending []int, batch dataset.Dataset, spec constraint.Spec) []int {
	mask := constraint.Validate(batch, spec).Combined()
	next := 0
	for i, ok := range mask {
		if !ok || next >= len(pending) {
			continue
		}
		slots[pending[next]] = batch.Row(i)
		next++
	}
	return pending[next:]
}

// partial compacts accepted slots into a dataset, preserving position order.
func (s *Service) partial(
	schema dataset.Schema, slots []dataset.Row, pending []int, rounds, sampled int,
) Result {
	open := make(map[int]struct{}, len(pending))
	for _, i := range pending {
		open[i] = struct{}{}
	}
	accepted := make([]dataset.Row, 0, len(slots)-len(pending))
	for i, row := range slots {
		if _, isOpen := open[i]; !isOpen {
			accepted = append(accepted, row)
		}
	}
	return Result{
		rows:    dataset.FromRows(schema, accepted),
		rounds:  rounds,
		sampled: sampled,
	}
}

func (s *Service) exhausted(
	schema dataset.Schema, slots []dataset.Row, pending []int, rounds, sampled, n int,
) (Result, error) {
	res := s.partial(schema, slots, pending, rounds, sampled)

	metrics.SamplingRounds.WithLabelValues("unsatisfiable").Observe(float64(rounds))
	metrics.SamplingUnsatisfiableTotal.Inc()
	metrics.SamplingRowsTotal.WithLabelValues("sampled").Add(float64(sampled))
	metrics.SamplingRowsTotal.WithLabelValues("accepted").Add(float64(res.rows.Len()))

	s.logger.Warn("sampling budget exhausted",
		zap.Int("pending", len(pending)),
		zap.Int("accepted", res.rows.Len()),
		zap.Int("requested", n),
		zap.Int("rounds", rounds),
		zap.Int("sampled", sampled),
	)
	return res, domain.NewUnsatisfiable(len(pending), res.rows.Len(), rounds)
}
