package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	FRED       FREDConfig       `mapstructure:"fred"`
	Stooq      StooqConfig      `mapstructure:"stooq"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Vault      VaultConfig      `mapstructure:"vault"`

	secretsApplied bool
}

// MarkSecretsApplied records that Vault secrets have been merged in, so
// validation enforces the production secret requirements again
func (c *Config) MarkSecretsApplied() {
	c.secretsApplied = true
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// FREDConfig contains settings for the FRED economic data API
type FREDConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Timeout           int     `mapstructure:"timeout"` // seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
	SearchLimit       int     `mapstructure:"search_limit"`
}

// StooqConfig contains settings for the Stooq daily price download
type StooqConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // seconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// RedisConfig contains Redis settings for the series cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequestTimeout int      `mapstructure:"request_timeout"` // seconds
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// AnalysisConfig contains defaults for portfolio and single-asset analysis
type AnalysisConfig struct {
	PeriodsPerYear  int     `mapstructure:"periods_per_year"`
	Rebalance       string  `mapstructure:"rebalance"`
	MinAssets       int     `mapstructure:"min_assets"`
	ShortWindow     int     `mapstructure:"short_window"`
	LongWindow      int     `mapstructure:"long_window"`
	RSIWindow       int     `mapstructure:"rsi_window"`
	ForecastHorizon int     `mapstructure:"forecast_horizon"`
	Confidence      float64 `mapstructure:"confidence"`
	EquityBase      float64 `mapstructure:"equity_base"`
	DefaultPeriod   string  `mapstructure:"default_period"`
	LookbackDays    int     `mapstructure:"lookback_days"`
}

// ReportsConfig contains settings for the daily report job
type ReportsConfig struct {
	OutputDir string   `mapstructure:"output_dir"`
	Ticker    string   `mapstructure:"ticker"`
	Tickers   []string `mapstructure:"tickers"`
	Publish   bool     `mapstructure:"publish"`
}

// VaultConfig points at the KV v2 secret holding provider and database
// credentials. The token is read from VAULT_TOKEN.
type VaultConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Mount    string `mapstructure:"mount"`
	Path     string `mapstructure:"path"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides (QUANTLENS_FRED_API_KEY, ...)
	v.SetEnvPrefix("QUANTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The conventional FRED variable is honoured when no key is configured
	if cfg.FRED.APIKey == "" {
		cfg.FRED.APIKey = os.Getenv("FRED_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "QuantLens")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// FRED defaults
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.timeout", 30)
	v.SetDefault("fred.requests_per_second", 2.0)
	v.SetDefault("fred.burst", 4)
	v.SetDefault("fred.max_retries", 3)
	v.SetDefault("fred.search_limit", 15)

	// Stooq defaults
	v.SetDefault("stooq.base_url", "https://stooq.com/q/d/l/")
	v.SetDefault("stooq.timeout", 30)
	v.SetDefault("stooq.max_retries", 2)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 300)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "quantlens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "quantlens.reports.")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)
	v.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.request_timeout", 60)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)

	// Analysis defaults
	v.SetDefault("analysis.periods_per_year", 252)
	v.SetDefault("analysis.rebalance", "Monthly")
	v.SetDefault("analysis.min_assets", 3)
	v.SetDefault("analysis.short_window", 20)
	v.SetDefault("analysis.long_window", 50)
	v.SetDefault("analysis.rsi_window", 14)
	v.SetDefault("analysis.forecast_horizon", 30)
	v.SetDefault("analysis.confidence", 0.95)
	v.SetDefault("analysis.equity_base", 100.0)
	v.SetDefault("analysis.default_period", "1y")
	v.SetDefault("analysis.lookback_days", 5*365)

	// Report defaults
	v.SetDefault("reports.output_dir", "./reports")
	v.SetDefault("reports.ticker", "AAPL.US")
	v.SetDefault("reports.tickers", []string{"AAPL.US", "MSFT.US", "GOOG.US"})
	v.SetDefault("reports.publish", false)

	// Vault defaults
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "http://localhost:8200")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "quantlens")
	v.SetDefault("vault.cache_ttl", 300)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.PoolSize,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetCacheTTL returns the series cache TTL as time.Duration
func (c *RedisConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetRequestTimeout returns the per-request analysis timeout
func (c *APIConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetCacheTTL returns the secret cache TTL as time.Duration
func (c *VaultConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetTimeout returns the FRED HTTP timeout as time.Duration
func (c *FREDConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetTimeout returns the Stooq HTTP timeout as time.Duration
func (c *StooqConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
