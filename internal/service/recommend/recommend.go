// Package recommend turns a cost summary into an optimization suggestion
// using a remote text-generation model.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"cloudsathi/internal/domain"
	"cloudsathi/internal/metrics"
)

// Model input/output limits.
const (
	MaxInputTokens  = 64
	MaxOutputLength = 32
)

// Recommender generates a suggestion from preprocessed model input.
type Recommender interface {
	Recommend(ctx context.Context, input string) (string, error)
}

// Preprocess flattens costData into "key: value" pairs joined by ", ".
// Positive numbers and strings are kept; keys are sorted; the result is
// truncated to MaxInputTokens whitespace-separated tokens.
func Preprocess(costData map[string]any) string {
	keys := make([]string, 0, len(costData))
	for k := range costData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := formatValue(costData[k]); ok {
			parts = append(parts, k+": "+v)
		}
	}
	text := strings.Join(parts, ", ")

	tokens := strings.Fields(text)
	if len(tokens) > MaxInputTokens {
		text = strings.Join(tokens[:MaxInputTokens], " ")
	}
	return text
}

func formatValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		f, err := x.Float64()
		if err != nil || f <= 0 {
			return "", false
		}
		return x.String(), true
	default:
		f, ok := toFloat(v)
		if !ok || f <= 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Service validates input and dispatches to the configured Recommender.
type Service struct {
	backend Recommender
	mock    bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. backend may be nil, in which case requests
// fail with RecommendationUnavailableError unless mock is set.
func NewService(backend Recommender, mock bool, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, mock: mock, logger: logger.With("component", "recommend"), metrics: m}
}

// Available reports whether Recommend can succeed.
func (s *Service) Available() bool { return s.backend != nil || s.mock }

// Recommend returns a suggestion for costData.
func (s *Service) Recommend(ctx context.Context, costData map[string]any) (string, error) {
	if len(costData) == 0 {
		return "", domain.ErrInvalidParameter("cost_data must contain at least one entry")
	}
	input := Preprocess(costData)
	if input == "" {
		return "", domain.ErrInvalidParameter("cost_data has no positive amounts or text values")
	}

	switch {
	case s.backend != nil:
		out, err := s.backend.Recommend(ctx, input)
		if err != nil {
			s.metrics.ObserveProvider("recommender", domain.KindOf(err))
			return "", err
		}
		s.metrics.ObserveProvider("recommender", "ok")
		return out, nil
	case s.mock:
		s.logger.DebugContext(ctx, "serving canned recommendation")
		return cannedRecommendation(costData), nil
	default:
		return "", &domain.RecommendationUnavailableError{}
	}
}

// cannedRecommendation names the largest numeric cost driver.
func cannedRecommendation(costData map[string]any) string {
	var (
		topKey string
		topVal float64
	)
	for k, v := range costData {
		f, ok := toFloat(v)
		if !ok || f <= 0 {
			continue
		}
		if f > topVal || (f == topVal && k < topKey) {
			topKey, topVal = k, f
		}
	}
	if topKey == "" {
		return "Review idle resources and enable cost allocation tags to find savings."
	}
	return fmt.Sprintf("Your largest cost driver is %s (%.2f). Consider rightsizing, scheduling or reserved capacity for %s.",
		topKey, topVal, topKey)
}
