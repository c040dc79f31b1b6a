// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AWSConfig holds credentials and Athena settings. Credentials are optional;
// without them Athena-backed endpoints run in mock mode and Cost Explorer
// reports a configuration error.
type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string

	AthenaDatabase       string
	AthenaTable          string
	AthenaOutputLocation string
	AthenaWorkGroup      string
	PollInterval         time.Duration // default 1s
	QueryTimeout         time.Duration // default 5m

	// CURLocalPath, when set, serves CUR reports from local export files
	// (Parquet or CSV, globs allowed) instead of Athena.
	CURLocalPath string
}

// HasCredentials returns true when access key, secret and region are all set.
func (a *AWSConfig) HasCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != "" && a.Region != ""
}

// MissingCredentials lists the unset credential variables, in a stable order.
func (a *AWSConfig) MissingCredentials() []string {
	var missing []string
	if a.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if a.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if a.Region == "" {
		missing = append(missing, "AWS_REGION")
	}
	return missing
}

// AzureConfig holds service principal credentials for Cost Management.
type AzureConfig struct {
	SubscriptionID string
	TenantID       string
	ClientID       string
	ClientSecret   string
}

// MissingCredentials lists the unset tenant/client/secret variables.
func (a *AzureConfig) MissingCredentials() []string {
	var missing []string
	if a.TenantID == "" {
		missing = append(missing, "AZURE_TENANT_ID")
	}
	if a.ClientID == "" {
		missing = append(missing, "AZURE_CLIENT_ID")
	}
	if a.ClientSecret == "" {
		missing = append(missing, "AZURE_CLIENT_SECRET")
	}
	return missing
}

// RecommenderConfig configures the remote inference endpoint.
type RecommenderConfig struct {
	URL     string        // inference endpoint; empty means no model is loaded
	Timeout time.Duration // default 30s
	Mock    bool          // serve canned recommendations when no URL is set
}

// Config holds the configuration for the HTTP API.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8000")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// JWTSecret enables HS256 bearer auth on /api routes when set.
	JWTSecret string

	AWS         AWSConfig
	Azure       AzureConfig
	Recommender RecommenderConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
// Cloud credentials are optional; the app can start without them.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		JWTSecret:  os.Getenv("AUTH_JWT_SECRET"),
		AWS: AWSConfig{
			AccessKeyID:          os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:         os.Getenv("AWS_SESSION_TOKEN"),
			Region:               os.Getenv("AWS_REGION"),
			AthenaDatabase:       os.Getenv("AWS_ATHENA_DATABASE"),
			AthenaTable:          os.Getenv("AWS_ATHENA_TABLE"),
			AthenaOutputLocation: os.Getenv("AWS_ATHENA_OUTPUT_LOCATION"),
			AthenaWorkGroup:      os.Getenv("AWS_ATHENA_WORKGROUP"),
			CURLocalPath:         os.Getenv("CUR_LOCAL_PATH"),
		},
		Azure: AzureConfig{
			SubscriptionID: os.Getenv("AZURE_SUBSCRIPTION_ID"),
			TenantID:       os.Getenv("AZURE_TENANT_ID"),
			ClientID:       os.Getenv("AZURE_CLIENT_ID"),
			ClientSecret:   os.Getenv("AZURE_CLIENT_SECRET"),
		},
		Recommender: RecommenderConfig{
			URL:  os.Getenv("RECOMMENDER_URL"),
			Mock: parseBoolEnvDefault("RECOMMENDER_MOCK", false),
		},
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	var err error
	if cfg.AWS.PollInterval, err = parseDurationEnv("ATHENA_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.AWS.QueryTimeout, err = parseDurationEnv("ATHENA_QUERY_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Recommender.Timeout, err = parseDurationEnv("RECOMMENDER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.AthenaDatabase == "" {
		cfg.AWS.AthenaDatabase = "athenacurcfn_my_cur_report"
	}
	if cfg.AWS.AthenaTable == "" {
		cfg.AWS.AthenaTable = "my_cur_report"
	}
	if cfg.AWS.AthenaOutputLocation == "" {
		cfg.AWS.AthenaOutputLocation = "s3://my-athena-results-bucket/"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if !cfg.AWS.HasCredentials() {
		cfg.Warnings = append(cfg.Warnings, "AWS credentials not set: CUR endpoints will serve mock data")
	}
	if cfg.Recommender.URL == "" && !cfg.Recommender.Mock {
		cfg.Warnings = append(cfg.Warnings, "RECOMMENDER_URL not set: /api/recommendations will return 503")
	}
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "AUTH_JWT_SECRET not set: API routes are unauthenticated")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.Recommender.Mock {
			return nil, fmt.Errorf("RECOMMENDER_MOCK must not be enabled in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimPrefix(strings.TrimSpace(key), "export ")
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
