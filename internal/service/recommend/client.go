package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cloudsathi/internal/domain"
)

const provider = "recommender"

// maxResponseBytes caps how much of an inference response is read.
const maxResponseBytes = 1 << 20

// InferenceClient calls a text-generation endpoint that accepts
// {"inputs": ..., "parameters": {...}} and returns generated_text.
type InferenceClient struct {
	url        string
	httpClient *http.Client
}

// NewInferenceClient creates a client for url with the given request timeout.
func NewInferenceClient(url string, timeout time.Duration) *InferenceClient {
	return &InferenceClient{
		url: url,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength int `json:"max_length"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// Recommend implements Recommender.
func (c *InferenceClient) Recommend(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:     input,
		Parameters: inferenceParameters{MaxLength: MaxOutputLength},
	})
	if err != nil {
		return "", fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", &domain.CancelledError{Err: err}
		}
		return "", domain.ErrRemote(provider, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.ErrRemote(provider, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.RemoteServiceError{
			Provider: provider,
			Message:  fmt.Sprintf("inference endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}

	text, err := parseGeneration(data)
	if err != nil {
		return "", &domain.RemoteServiceError{Provider: provider, Message: err.Error(), Err: err}
	}
	return strings.TrimSpace(text), nil
}

// parseGeneration accepts either a list of generations or a single object.
func parseGeneration(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", errors.New("empty inference response")
	}
	if trimmed[0] == '[' {
		var gens []generation
		if err := json.Unmarshal(trimmed, &gens); err != nil {
			return "", fmt.Errorf("decode inference response: %w", err)
		}
		if len(gens) == 0 {
			return "", errors.New("inference response contained no generations")
		}
		return gens[0].GeneratedText, nil
	}
	var gen generation
	if err := json.Unmarshal(trimmed, &gen); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	return gen.GeneratedText, nil
}
