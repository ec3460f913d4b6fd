package sampler

import (
	"context"

	"github.com/tabsynth/tabsynth/internal/domain/dataset"
)

// Model is the sampling half of the generative-model capability.
// Implementations must return exactly n rows sharing the schema the
// model was trained on. The sampler treats the model as a black box;
// each call is a blocking round-trip with no latency bound.
type Model interface {
	Sample(ctx context.Context, n int) (dataset.Dataset, error)
}
