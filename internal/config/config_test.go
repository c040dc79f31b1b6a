package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadFromEnv reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "LOG_LEVEL", "ENV", "AUTH_JWT_SECRET",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "AWS_REGION",
		"AWS_ATHENA_DATABASE", "AWS_ATHENA_TABLE", "AWS_ATHENA_OUTPUT_LOCATION", "AWS_ATHENA_WORKGROUP",
		"ATHENA_POLL_INTERVAL", "ATHENA_QUERY_TIMEOUT", "CUR_LOCAL_PATH",
		"AZURE_SUBSCRIPTION_ID", "AZURE_TENANT_ID", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET",
		"RECOMMENDER_URL", "RECOMMENDER_TIMEOUT", "RECOMMENDER_MOCK",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "athenacurcfn_my_cur_report", cfg.AWS.AthenaDatabase)
	assert.Equal(t, "my_cur_report", cfg.AWS.AthenaTable)
	assert.Equal(t, "s3://my-athena-results-bucket/", cfg.AWS.AthenaOutputLocation)
	assert.Equal(t, time.Second, cfg.AWS.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.AWS.QueryTimeout)
	assert.Equal(t, 30*time.Second, cfg.Recommender.Timeout)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.AWS.HasCredentials())
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ATHENA_DATABASE", "cur_db")
	t.Setenv("ATHENA_POLL_INTERVAL", "250ms")
	t.Setenv("ATHENA_QUERY_TIMEOUT", "90s")
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-1")
	t.Setenv("RECOMMENDER_URL", "http://model:8080/generate")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("RATE_LIMIT_RPS", "5.5")
	t.Setenv("RATE_LIMIT_BURST", "11")
	t.Setenv("CUR_LOCAL_PATH", "/data/cur/*.parquet")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.AWS.HasCredentials())
	assert.Empty(t, cfg.AWS.MissingCredentials())
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "cur_db", cfg.AWS.AthenaDatabase)
	assert.Equal(t, 250*time.Millisecond, cfg.AWS.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.AWS.QueryTimeout)
	assert.Equal(t, "sub-1", cfg.Azure.SubscriptionID)
	assert.Equal(t, "http://model:8080/generate", cfg.Recommender.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.InDelta(t, 5.5, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 11, cfg.RateLimitBurst)
	assert.Equal(t, "/data/cur/*.parquet", cfg.AWS.CURLocalPath)
}

func TestLoadFromEnv_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATHENA_POLL_INTERVAL", "soon")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ATHENA_POLL_INTERVAL")

	t.Setenv("ATHENA_POLL_INTERVAL", "-1s")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_ProductionRejectsWildcardCORS(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS wildcard")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://costs.example.com")
	t.Setenv("RECOMMENDER_MOCK", "true")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECOMMENDER_MOCK")

	t.Setenv("RECOMMENDER_MOCK", "false")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestAWSConfig_MissingCredentials(t *testing.T) {
	a := AWSConfig{AccessKeyID: "x"}
	assert.Equal(t, []string{"AWS_SECRET_ACCESS_KEY", "AWS_REGION"}, a.MissingCredentials())
	assert.False(t, a.HasCredentials())
}

func TestAzureConfig_MissingCredentials(t *testing.T) {
	a := AzureConfig{SubscriptionID: "s", ClientID: "c"}
	assert.Equal(t, []string{"AZURE_TENANT_ID", "AZURE_CLIENT_SECRET"}, a.MissingCredentials())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# comment
AWS_ATHENA_TABLE="quoted_table"
export AZURE_TENANT_ID='tenant'
NOEQUALS
LOG_LEVEL=debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("AWS_ATHENA_TABLE", "")
	t.Setenv("AZURE_TENANT_ID", "")
	t.Setenv("LOG_LEVEL", "warn")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted_table", os.Getenv("AWS_ATHENA_TABLE"))
	assert.Equal(t, "tenant", os.Getenv("AZURE_TENANT_ID"))
	// Existing env takes precedence.
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "abc", stripQuotes(`"abc"`))
	assert.Equal(t, "abc", stripQuotes(`'abc'`))
	assert.Equal(t, `"abc'`, stripQuotes(`"abc'`))
	assert.Equal(t, `"`, stripQuotes(`"`))
}
