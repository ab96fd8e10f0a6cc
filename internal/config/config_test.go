//nolint:goconst // Test files use repeated strings for clarity
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getValidConfig returns a valid configuration for testing
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "QuantLens",
			Version:     Version,
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		FRED: FREDConfig{
			APIKey:            "abcdef0123456789",
			BaseURL:           "https://api.stlouisfed.org/fred",
			Timeout:           30,
			RequestsPerSecond: 2,
			Burst:             4,
			MaxRetries:        3,
			SearchLimit:       15,
		},
		Stooq: StooqConfig{
			BaseURL:    "https://stooq.com/q/d/l/",
			Timeout:    30,
			MaxRetries: 2,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     6379,
			CacheTTL: 300,
		},
		Database: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "secure_password",
			Database: "quantlens",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		NATS: NATSConfig{
			Enabled:       true,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "quantlens.reports.",
		},
		API: APIConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 60,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
		Analysis: AnalysisConfig{
			PeriodsPerYear:  252,
			Rebalance:       "Monthly",
			MinAssets:       3,
			ShortWindow:     20,
			LongWindow:      50,
			RSIWindow:       14,
			ForecastHorizon: 30,
			Confidence:      0.95,
			EquityBase:      100,
			DefaultPeriod:   "1y",
			LookbackDays:    1825,
		},
	}
}

// ============================================================================
// LOAD TESTS
// ============================================================================

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRED_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: QuantLens\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 252, cfg.Analysis.PeriodsPerYear)
	assert.Equal(t, "Monthly", cfg.Analysis.Rebalance)
	assert.Equal(t, 3, cfg.Analysis.MinAssets)
	assert.Equal(t, 20, cfg.Analysis.ShortWindow)
	assert.Equal(t, 50, cfg.Analysis.LongWindow)
	assert.Equal(t, 14, cfg.Analysis.RSIWindow)
	assert.Equal(t, 30, cfg.Analysis.ForecastHorizon)
	assert.Equal(t, 0.95, cfg.Analysis.Confidence)
	assert.Equal(t, 100.0, cfg.Analysis.EquityBase)
	assert.Equal(t, "1y", cfg.Analysis.DefaultPeriod)
	assert.Equal(t, 15, cfg.FRED.SearchLimit)
	assert.Equal(t, 300, cfg.Redis.CacheTTL)
	assert.Equal(t, APIServerPort, cfg.API.Port)
	assert.Equal(t, []string{"AAPL.US", "MSFT.US", "GOOG.US"}, cfg.Reports.Tickers)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  name: QuantLens
  log_level: debug
analysis:
  rebalance: Weekly
  min_assets: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("QUANTLENS_API_PORT", "9090")
	t.Setenv("QUANTLENS_FRED_API_KEY", "")
	t.Setenv("FRED_API_KEY", "from-fallback")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "Weekly", cfg.Analysis.Rebalance)
	assert.Equal(t, 2, cfg.Analysis.MinAssets)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "from-fallback", cfg.FRED.APIKey)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: QuantLens\n"), 0o600))

	t.Setenv("QUANTLENS_FRED_API_KEY", "primary")
	t.Setenv("FRED_API_KEY", "fallback")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.FRED.APIKey)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  rebalance: Daily\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "analysis.rebalance", verrs[0].Field)
}

func TestConfigHelpers(t *testing.T) {
	cfg := getValidConfig()
	assert.Equal(t, "localhost:6379", cfg.Redis.GetRedisAddr())
	assert.Equal(t, "0.0.0.0:8080", cfg.API.GetAPIAddr())
	assert.Equal(t, 300.0, cfg.Redis.GetCacheTTL().Seconds())
	assert.Equal(t, 30.0, cfg.FRED.GetTimeout().Seconds())
	assert.Contains(t, cfg.Database.GetDSN(), "dbname=quantlens")
	assert.Contains(t, cfg.Database.GetDSN(), "pool_max_conns=10")
	assert.Equal(t, Version, GetVersion())
}

// ============================================================================
// VALIDATION TESTS
// ============================================================================

func TestValidConfig(t *testing.T) {
	assert.NoError(t, getValidConfig().Validate())
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad environment", func(c *Config) { c.App.Environment = "qa" }, "app.environment"},
		{"bad log format", func(c *Config) { c.App.LogFormat = "xml" }, "app.log_format"},
		{"bad fred url", func(c *Config) { c.FRED.BaseURL = "ftp://x" }, "fred.base_url"},
		{"zero rate", func(c *Config) { c.FRED.RequestsPerSecond = 0 }, "fred.requests_per_second"},
		{"zero search limit", func(c *Config) { c.FRED.SearchLimit = 0 }, "fred.search_limit"},
		{"redis port", func(c *Config) { c.Redis.Port = 70000 }, "redis.port"},
		{"redis ttl", func(c *Config) { c.Redis.CacheTTL = 0 }, "redis.cache_ttl"},
		{"db user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"nats url", func(c *Config) { c.NATS.URL = "localhost:4222" }, "nats.url"},
		{"api port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"port clash", func(c *Config) { c.Monitoring.PrometheusPort = 8080 }, "monitoring.prometheus_port"},
		{"policy", func(c *Config) { c.Analysis.Rebalance = "Yearly" }, "analysis.rebalance"},
		{"windows", func(c *Config) { c.Analysis.ShortWindow = 60 }, "analysis.short_window"},
		{"confidence", func(c *Config) { c.Analysis.Confidence = 1 }, "analysis.confidence"},
		{"period", func(c *Config) { c.Analysis.DefaultPeriod = "10y" }, "analysis.default_period"},
		{"min assets", func(c *Config) { c.Analysis.MinAssets = 0 }, "analysis.min_assets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			verrs, ok := err.(ValidationErrors)
			require.True(t, ok)
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestDisabledServicesAreNotValidated(t *testing.T) {
	cfg := getValidConfig()
	cfg.Redis = RedisConfig{}
	cfg.Database = DatabaseConfig{}
	cfg.NATS = NATSConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestProductionRequirements(t *testing.T) {
	cfg := getValidConfig()
	cfg.App.Environment = "production"
	cfg.FRED.APIKey = "your_api_key_here"
	cfg.Database.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "fred.api_key")
	assert.Contains(t, msg, "database.ssl_mode")
	assert.Contains(t, msg, "database.password")
	assert.Contains(t, msg, "Configuration validation failed with 3 error(s)")
}

func TestProductionSecretsDeferredToVault(t *testing.T) {
	cfg := getValidConfig()
	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "require"
	cfg.FRED.APIKey = ""
	cfg.Database.Password = ""
	cfg.Vault.Enabled = true

	assert.NoError(t, cfg.Validate())

	cfg.MarkSecretsApplied()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fred.api_key")
	assert.Contains(t, err.Error(), "database.password")
}

func TestValidationErrorsEmpty(t *testing.T) {
	assert.Equal(t, "", ValidationErrors{}.Error())
}

// ============================================================================
// LOGGER TESTS
// ============================================================================

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitLoggerWithOutput("debug", "json", &buf)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Contains(t, buf.String(), "Logger initialized")
	assert.Contains(t, buf.String(), `"service":"quantlens"`)

	buf.Reset()
	logger := NewProviderLogger("fred")
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"provider":"fred"`)
	assert.Contains(t, buf.String(), `"component":"provider"`)

	buf.Reset()
	InitLoggerWithOutput("nonsense", "json", &buf)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	log.Logger = zerolog.New(os.Stderr)
}
