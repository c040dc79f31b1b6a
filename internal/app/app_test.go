package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:         ":0",
		RateLimitRPS:       100,
		RateLimitBurst:     200,
		CORSAllowedOrigins: []string{"*"},
		AWS: config.AWSConfig{
			Region:               "us-east-1",
			AthenaDatabase:       "athenacurcfn_my_cur_report",
			AthenaTable:          "my_cur_report",
			AthenaOutputLocation: "s3://my-athena-results-bucket/",
			PollInterval:         time.Millisecond,
			QueryTimeout:         time.Second,
		},
		Recommender: config.RecommenderConfig{Mock: true},
	}
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a, err := New(ctx, Deps{Cfg: cfg, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	h, err := NewRouter(ctx, cfg, a, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestRouter_PublicEndpoints(t *testing.T) {
	srv := newServer(t, testConfig())

	resp, body := get(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	// No AWS credentials: nothing to check.
	resp, _ = get(t, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/openapi.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = get(t, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `cloudsathi_http_requests_total{code="200",method="GET",route="/health"}`)
}

func TestRouter_MockModeCUR(t *testing.T) {
	srv := newServer(t, testConfig())

	resp, body := get(t, srv.URL+"/api/aws/cur/top-resources?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []map[string]*string
	require.NoError(t, json.Unmarshal(body, &rows))
	assert.Len(t, rows, 5)
}

func TestRouter_LocalCURFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cur.csv")
	require.NoError(t, os.WriteFile(path, []byte(`line_item_resource_id,line_item_product_code,line_item_usage_type,line_item_line_item_type,line_item_unblended_cost,line_item_currency_code,line_item_usage_start_date
i-1,AmazonEC2,BoxUsage,Usage,7.5,USD,2024-01-05 00:00:00
`), 0o600))

	cfg := testConfig()
	cfg.AWS.CURLocalPath = path
	srv := newServer(t, cfg)

	resp, body := get(t, srv.URL+"/api/aws/cur/top-resources?start_date=2024-01-01&end_date=2024-01-31&view=normalized", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report struct {
		TotalCost float64 `json:"total_cost"`
		Currency  string  `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(body, &report))
	assert.InDelta(t, 7.5, report.TotalCost, 1e-9)
	assert.Equal(t, "USD", report.Currency)

	resp, body = get(t, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"cur_local_files":"ok"`)
}

func TestNew_LocalCURFilesMissing(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.CURLocalPath = filepath.Join(t.TempDir(), "none", "*.parquet")
	_, err := New(context.Background(), Deps{Cfg: cfg, Logger: slog.New(slog.DiscardHandler)})
	require.Error(t, err)
}

func TestRouter_MissingCredentials(t *testing.T) {
	srv := newServer(t, testConfig())

	resp, body := get(t, srv.URL+"/api/aws/costs?start_date=2024-01-01&end_date=2024-01-31", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), `"kind":"configuration"`)

	resp, body = get(t, srv.URL+"/api/azure/costs?start_date=2024-01-01&end_date=2024-01-31", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"kind":"configuration"`)
}

func TestRouter_BearerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "router-test-secret"
	srv := newServer(t, cfg)

	resp, _ := get(t, srv.URL+"/api/aws/cur/top-resources", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Public endpoints stay open.
	resp, _ = get(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "finops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	resp, _ = get(t, srv.URL+"/api/aws/cur/top-resources", http.Header{"Authorization": {"Bearer " + signed}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	srv := newServer(t, cfg)

	resp, _ := get(t, srv.URL+"/api/aws/cur/top-resources", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/api/aws/cur/top-resources", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
