package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/internal/domain"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want string
	}{
		{
			name: "sorted keys, positive numbers and strings",
			in:   map[string]any{"s3": 89.3, "ec2": 145.2, "region": "us-east-1", "rds": 0.0, "lambda": -1.0},
			want: "ec2: 145.2, region: us-east-1, s3: 89.3",
		},
		{
			name: "integers",
			in:   map[string]any{"ec2": 100, "s3": int64(5)},
			want: "ec2: 100, s3: 5",
		},
		{
			name: "json numbers",
			in:   map[string]any{"ec2": json.Number("12.50"), "s3": json.Number("0")},
			want: "ec2: 12.50",
		},
		{
			name: "unsupported values dropped",
			in:   map[string]any{"flag": true, "nested": map[string]any{"a": 1.0}, "ec2": 1.5},
			want: "ec2: 1.5",
		},
		{
			name: "nothing usable",
			in:   map[string]any{"rds": 0.0},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preprocess(tt.in))
		})
	}
}

func TestPreprocess_Truncates(t *testing.T) {
	in := map[string]any{"notes": strings.Repeat("word ", 200)}
	out := Preprocess(in)
	assert.Len(t, strings.Fields(out), MaxInputTokens)
	assert.True(t, strings.HasPrefix(out, "notes: word"))
}

type stubRecommender struct {
	input string
	out   string
	err   error
}

func (s *stubRecommender) Recommend(_ context.Context, input string) (string, error) {
	s.input = input
	return s.out, s.err
}

func newTestService(backend Recommender, mock bool) *Service {
	return NewService(backend, mock, slog.New(slog.DiscardHandler), nil)
}

func TestService_Backend(t *testing.T) {
	stub := &stubRecommender{out: "Use reserved instances for EC2."}
	svc := newTestService(stub, false)
	assert.True(t, svc.Available())

	got, err := svc.Recommend(context.Background(), map[string]any{"ec2": 145.2, "s3": 89.3})
	require.NoError(t, err)
	assert.Equal(t, "Use reserved instances for EC2.", got)
	assert.Equal(t, "ec2: 145.2, s3: 89.3", stub.input)
}

func TestService_BackendError(t *testing.T) {
	stub := &stubRecommender{err: domain.ErrRemote("recommender", errors.New("502"))}
	_, err := newTestService(stub, false).Recommend(context.Background(), map[string]any{"ec2": 1.0})
	assert.Equal(t, domain.KindRemoteService, domain.KindOf(err))
}

func TestService_Unavailable(t *testing.T) {
	svc := newTestService(nil, false)
	assert.False(t, svc.Available())
	_, err := svc.Recommend(context.Background(), map[string]any{"ec2": 1.0})
	var unavailable *domain.RecommendationUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestService_InvalidInput(t *testing.T) {
	svc := newTestService(&stubRecommender{}, false)
	_, err := svc.Recommend(context.Background(), nil)
	assert.Equal(t, domain.KindInvalidParameter, domain.KindOf(err))

	_, err = svc.Recommend(context.Background(), map[string]any{"ec2": 0.0})
	assert.Equal(t, domain.KindInvalidParameter, domain.KindOf(err))
}

func TestService_Mock(t *testing.T) {
	svc := newTestService(nil, true)
	assert.True(t, svc.Available())
	got, err := svc.Recommend(context.Background(), map[string]any{"ec2": 145.2, "rds": 280.0, "s3": 89.3})
	require.NoError(t, err)
	assert.Contains(t, got, "rds (280.00)")

	got, err = svc.Recommend(context.Background(), map[string]any{"note": "only text"})
	require.NoError(t, err)
	assert.Contains(t, got, "idle resources")
}

func TestInferenceClient(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind string
	}{
		{"list response", http.StatusOK, `[{"generated_text": " Rightsize EC2 instances. "}]`, "Rightsize EC2 instances.", ""},
		{"object response", http.StatusOK, `{"generated_text": "Delete idle volumes."}`, "Delete idle volumes.", ""},
		{"empty list", http.StatusOK, `[]`, "", domain.KindRemoteService},
		{"garbage", http.StatusOK, `not json`, "", domain.KindRemoteService},
		{"server error", http.StatusServiceUnavailable, `model loading`, "", domain.KindRemoteService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq inferenceRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &gotReq)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewInferenceClient(srv.URL, 5*time.Second)
			got, err := c.Recommend(context.Background(), "ec2: 145.2")
			assert.Equal(t, "ec2: 145.2", gotReq.Inputs)
			assert.Equal(t, MaxOutputLength, gotReq.Parameters.MaxLength)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferenceClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewInferenceClient(url, time.Second).Recommend(context.Background(), "x")
	assert.Equal(t, domain.KindRemoteService, domain.KindOf(err))
}
