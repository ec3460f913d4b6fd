// Package empirical implements the built-in generative model backend:
// each column is sampled from its observed marginal distribution,
// numeric columns with Gaussian jitter around resampled observations,
// categorical columns by frequency-weighted draws.
package empirical

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	"github.com/tabsynth/tabsynth/internal/metrics"
)

const backendName = "empirical"

// jitterFactor scales the per-column standard deviation into the
// smoothing bandwidth applied to resampled numeric observations.
const jitterFactor = 0.05

// Model learns per-column empirical distributions from a source dataset.
// Fit must complete before Sample; one Model belongs to one generation
// session and is used sequentially, never concurrently.
type Model struct {
	rng    *rand.Rand
	schema dataset.Schema
	cols   []columnModel
	fitted bool
}

type columnModel struct {
	name        string
	categorical bool

	// numeric state
	observed []float64
	jitter   float64

	// categorical state
	labels []string
	cum    []float64 // cumulative frequency weights
}

// Option configures the model.
type Option func(*Model)

// WithSeed makes sampling deterministic.
func WithSeed(seed uint64) Option {
	return func(m *Model) {
		m.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// New creates an untrained empirical model.
func New(opts ...Option) *Model {
	m := &Model{}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		now := uint64(time.Now().UnixNano())
		m.rng = rand.New(rand.NewPCG(now, now^0x9e3779b97f4a7c15))
	}
	return m
}

// Fit learns the marginal distribution of every column. Columns listed
// in categorical are modeled categorically regardless of their inferred
// kind, mirroring how the training hint is passed to the backend.
func (m *Model) Fit(_ context.Context, source dataset.Dataset, categorical []string) error {
	start := time.Now()

	if source.Len() == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(backendName, "fit", "error").Inc()
		return fmt.Errorf("%w: empty source dataset", domain.ErrModelTraining)
	}

	forced := make(map[string]struct{}, len(categorical))
	for _, name := range categorical {
		if _, ok := source.Schema().ColumnByName(name); !ok {
			metrics.ModelRequestsTotal.WithLabelValues(backendName, "fit", "error").Inc()
			return fmt.Errorf("%w: categorical column %q not in source", domain.ErrSchemaMismatch, name)
		}
		forced[name] = struct{}{}
	}

	cols := make([]columnModel, 0, source.Schema().Len())
	for _, col := range source.Schema().Columns() {
		// A numeric column hinted as categorical keeps its value type but
		// is modeled as discrete: observed values resampled without jitter.
		_, discrete := forced[col.Name()]
		cols = append(cols, fitColumn(source, col, discrete))
	}

	m.schema = source.Schema()
	m.cols = cols
	m.fitted = true

	metrics.ModelRequestsTotal.WithLabelValues(backendName, "fit", "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(backendName, "fit").Observe(time.Since(start).Seconds())
	return nil
}

func fitColumn(source dataset.Dataset, col dataset.Column, discrete bool) columnModel {
	cm := columnModel{name: col.Name(), categorical: col.Kind() == dataset.Categorical}

	if cm.categorical {
		counts := make(map[string]float64)
		order := make([]string, 0)
		for _, row := range source.Rows() {
			v := row[col.Name()]
			if v.IsNull() {
				continue
			}
			label := v.String()
			if _, seen := counts[label]; !seen {
				order = append(order, label)
			}
			counts[label]++
		}
		total := 0.0
		for _, label := range order {
			total += counts[label]
			cm.labels = append(cm.labels, label)
			cm.cum = append(cm.cum, total)
		}
		return cm
	}

	var sum, sumSq float64
	for _, row := range source.Rows() {
		f, ok := row[col.Name()].Float()
		if !ok {
			continue
		}
		cm.observed = append(cm.observed, f)
		sum += f
		sumSq += f * f
	}
	if n := float64(len(cm.observed)); n > 1 && !discrete {
		variance := (sumSq - sum*sum/n) / (n - 1)
		if variance > 0 {
			cm.jitter = jitterFactor * math.Sqrt(variance)
		}
	}
	return cm
}

// Sample draws n rows from the learned distributions.
func (m *Model) Sample(ctx context.Context, n int) (dataset.Dataset, error) {
	start := time.Now()

	if !m.fitted {
		metrics.ModelRequestsTotal.WithLabelValues(backendName, "sample", "error").Inc()
		return dataset.Dataset{}, fmt.Errorf("sample %d rows: %w", n, domain.ErrModelNotTrained)
	}
	if n < 0 {
		metrics.ModelRequestsTotal.WithLabelValues(backendName, "sample", "error").Inc()
		return dataset.Dataset{}, fmt.Errorf("negative sample count %d", n)
	}
	if err := ctx.Err(); err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(backendName, "sample", "error").Inc()
		return dataset.Dataset{}, err
	}

	rows := make([]dataset.Row, n)
	for i := range rows {
		row := make(dataset.Row, len(m.cols))
		for ci := range m.cols {
			row[m.cols[ci].name] = m.cols[ci].draw(m.rng)
		}
		rows[i] = row
	}

	metrics.ModelRequestsTotal.WithLabelValues(backendName, "sample", "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(backendName, "sample").Observe(time.Since(start).Seconds())
	return dataset.FromRows(m.schema, rows), nil
}

func (cm *columnModel) draw(rng *rand.Rand) dataset.Value {
	if cm.categorical {
		if len(cm.labels) == 0 {
			return dataset.Null()
		}
		target := rng.Float64() * cm.cum[len(cm.cum)-1]
		for i, c := range cm.cum {
			if target < c {
				return dataset.Label(cm.labels[i])
			}
		}
		return dataset.Label(cm.labels[len(cm.labels)-1])
	}

	if len(cm.observed) == 0 {
		return dataset.Null()
	}
	base := cm.observed[rng.IntN(len(cm.observed))]
	return dataset.Number(base + rng.NormFloat64()*cm.jitter)
}
