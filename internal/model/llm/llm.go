// Package llm implements a generative model backend over an
// OpenAI-compatible chat completion API: the source distribution is
// summarized into a column profile at fit time, and sampling prompts
// the model for JSON rows matching the schema.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	"github.com/tabsynth/tabsynth/internal/metrics"
)

// Model generates synthetic rows via chat completions. One Model
// belongs to one generation session; Fit must complete before Sample.
type Model struct {
	client      *openai.Client
	model       string
	provider    string
	temperature float32
	maxExamples int
	logger      *zap.Logger

	schema  dataset.Schema
	profile string
	fitted  bool
}

// Config holds the LLM backend settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Provider       string
	Temperature    float32
	MaxExampleRows int
	Logger         *zap.Logger
}

// New creates an OpenAI-compatible generative model backend.
func New(cfg *Config) *Model {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxExamples := cfg.MaxExampleRows
	if maxExamples <= 0 {
		maxExamples = 20
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Model{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		provider:    cfg.Provider,
		temperature: cfg.Temperature,
		maxExamples: maxExamples,
		logger:      logger,
	}
}

// Fit builds the prompt profile: per-column kind, numeric summary
// statistics, categorical vocabularies, and a handful of example rows.
// No remote call is made; training cost is deferred to sampling.
func (m *Model) Fit(_ context.Context, source dataset.Dataset, categorical []string) error {
	if source.Len() == 0 {
		return fmt.Errorf("%w: empty source dataset", domain.ErrModelTraining)
	}
	for _, name := range categorical {
		if _, ok := source.Schema().ColumnByName(name); !ok {
			return fmt.Errorf("%w: categorical column %q not in source", domain.ErrSchemaMismatch, name)
		}
	}

	m.schema = source.Schema()
	m.profile = buildProfile(source, categorical, m.maxExamples)
	m.fitted = true
	return nil
}

// Sample requests n rows as a JSON array and parses them into the
// session schema. A response with fewer than n valid rows fails the
// call; surplus rows are truncated.
func (m *Model) Sample(ctx context.Context, n int) (dataset.Dataset, error) {
	if !m.fitted {
		return dataset.Dataset{}, fmt.Errorf("sample %d rows: %w", n, domain.ErrModelNotTrained)
	}

	start := time.Now()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You generate synthetic tabular data. Respond with a JSON array of row " +
					"objects only, no prose and no markdown fences.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%s\n\nGenerate exactly %d new rows.", m.profile, n),
			},
		},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(m.provider, "sample", "error").Inc()
		return dataset.Dataset{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(m.provider, "sample", "error").Inc()
		return dataset.Dataset{}, fmt.Errorf("empty completion response: %w", domain.ErrModelSampling)
	}

	rows, err := m.parseRows(resp.Choices[0].Message.Content, n)
	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(m.provider, "sample", "error").Inc()
		return dataset.Dataset{}, err
	}

	metrics.ModelRequestsTotal.WithLabelValues(m.provider, "sample", "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(m.provider, "sample").Observe(duration.Seconds())
	m.logger.Debug("llm sample round-trip",
		zap.Int("rows", n),
		zap.Duration("latency", duration),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return dataset.FromRows(m.schema, rows), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (m *Model) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseRows decodes the completion into typed rows against the schema.
func (m *Model) parseRows(content string, n int) ([]dataset.Row, error) {
	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: completion contains no JSON array", domain.ErrModelSampling)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode rows: %w", domain.ErrModelSampling, err)
	}

	rows := make([]dataset.Row, 0, len(decoded))
	for _, rec := range decoded {
		row := make(dataset.Row, m.schema.Len())
		for _, col := range m.schema.Columns() {
			row[col.Name()] = coerce(rec[col.Name()], col.Kind())
		}
		rows = append(rows, row)
	}

	if len(rows) < n {
		return nil, fmt.Errorf("%w: requested %d rows, completion held %d",
			domain.ErrModelSampling, n, len(rows))
	}
	return rows[:n], nil
}

// coerce maps a decoded JSON value into the column's value kind.
// Anything that does not fit becomes null and fails any constraint.
func coerce(v any, kind dataset.Kind) dataset.Value {
	if v == nil {
		return dataset.Null()
	}
	switch kind {
	case dataset.Numeric:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return dataset.Null()
			}
			return dataset.Number(x)
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(x), "%g", &f); err == nil {
				return dataset.Number(f)
			}
		}
		return dataset.Null()
	case dataset.Categorical:
		switch x := v.(type) {
		case string:
			return dataset.Label(x)
		case float64:
			return dataset.Label(dataset.Number(x).String())
		case bool:
			return dataset.Label(fmt.Sprintf("%t", x))
		}
		return dataset.Null()
	default:
		return dataset.Null()
	}
}

// extractJSONArray trims prose or markdown fences around the array.
func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// buildProfile renders the source summary the completion is conditioned on.
func buildProfile(source dataset.Dataset, categorical []string, maxExamples int) string {
	forced := make(map[string]struct{}, len(categorical))
	for _, name := range categorical {
		forced[name] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("Dataset columns:\n")
	for _, col := range source.Schema().Columns() {
		if col.Kind() == dataset.Categorical {
			b.WriteString(fmt.Sprintf("- %q (categorical): values %v\n",
				col.Name(), observedLabels(source, col.Name())))
			continue
		}
		min, max, mean := numericSummary(source, col.Name())
		if _, discrete := forced[col.Name()]; discrete {
			b.WriteString(fmt.Sprintf("- %q (numeric, discrete): min %g, max %g, mean %.4g\n",
				col.Name(), min, max, mean))
		} else {
			b.WriteString(fmt.Sprintf("- %q (numeric): min %g, max %g, mean %.4g\n",
				col.Name(), min, max, mean))
		}
	}

	limit := maxExamples
	if source.Len() < limit {
		limit = source.Len()
	}
	b.WriteString("\nExample rows:\n")
	for i := 0; i < limit; i++ {
		rec := make(map[string]string, source.Schema().Len())
		for _, col := range source.Schema().Columns() {
			rec[col.Name()] = source.Row(i)[col.Name()].String()
		}
		encoded, _ := json.Marshal(rec)
		b.Write(encoded)
		b.WriteByte('\n')
	}
	return b.String()
}

func observedLabels(source dataset.Dataset, column string) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, row := range source.Rows() {
		s, ok := row[column].Text()
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		labels = append(labels, s)
	}
	return labels
}

func numericSummary(source dataset.Dataset, column string) (min, max, mean float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	sum, count := 0.0, 0
	for _, row := range source.Rows() {
		f, ok := row[column].Float()
		if !ok {
			continue
		}
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
		sum += f
		count++
	}
	if count == 0 {
		return 0, 0, 0
	}
	return min, max, sum / float64(count)
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrModelSampling so the transport
// maps them consistently.
func parseAPIError(err error) error {
	wrap := domain.ErrModelSampling

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}
