package config

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/quantlens/pkg/portfolio"
)

// ValidPeriods lists the accepted single-asset lookback periods
var ValidPeriods = []string{"6mo", "1y", "2y", "5y"}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateProviders()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateAnalysis()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
		})
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	if c.App.LogFormat != "" && c.App.LogFormat != "json" && c.App.LogFormat != "console" {
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be json or console", c.App.LogFormat),
		})
	}

	return errors
}

func (c *Config) validateProviders() ValidationErrors {
	var errors ValidationErrors

	if !isHTTPURL(c.FRED.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "fred.base_url",
			Message: fmt.Sprintf("Invalid FRED base URL '%s'", c.FRED.BaseURL),
		})
	}

	if c.FRED.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fred.requests_per_second",
			Message: "Request rate must be positive",
		})
	}

	if c.FRED.MaxRetries < 0 || c.Stooq.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "max_retries",
			Message: "Retry counts cannot be negative",
		})
	}

	if c.FRED.SearchLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "fred.search_limit",
			Message: "Search limit must be at least 1",
		})
	}

	if !isHTTPURL(c.Stooq.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "stooq.base_url",
			Message: fmt.Sprintf("Invalid Stooq base URL '%s'", c.Stooq.BaseURL),
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors
	if !c.Redis.Enabled {
		return errors
	}

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required when the cache is enabled",
		})
	}

	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	if c.Redis.CacheTTL < 1 {
		errors = append(errors, ValidationError{
			Field:   "redis.cache_ttl",
			Message: "Cache TTL must be at least 1 second",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors
	if !c.Database.Enabled {
		return errors
	}

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Pool size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors
	if !c.NATS.Enabled {
		return errors
	}

	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: fmt.Sprintf("Invalid NATS URL '%s'. Must start with nats:// or tls://", c.NATS.URL),
		})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port < 1 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.API.Port),
		})
	}

	if c.Monitoring.EnableMetrics && (c.Monitoring.PrometheusPort < 1 || c.Monitoring.PrometheusPort > 65535) {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Monitoring.PrometheusPort),
		})
	}

	if c.Monitoring.EnableMetrics && c.Monitoring.PrometheusPort == c.API.Port {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: "Metrics port must differ from the API port",
		})
	}

	return errors
}

func (c *Config) validateAnalysis() ValidationErrors {
	var errors ValidationErrors
	a := c.Analysis

	if a.PeriodsPerYear < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.periods_per_year",
			Message: "Periods per year must be positive",
		})
	}

	if _, err := portfolio.ParseRebalancePolicy(a.Rebalance); err != nil {
		errors = append(errors, ValidationError{
			Field:   "analysis.rebalance",
			Message: fmt.Sprintf("Invalid rebalance policy '%s'. Must be None, Weekly or Monthly", a.Rebalance),
		})
	}

	if a.MinAssets < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.min_assets",
			Message: "Minimum asset count must be at least 1",
		})
	}

	if a.ShortWindow < 1 || a.LongWindow < 1 || a.ShortWindow >= a.LongWindow {
		errors = append(errors, ValidationError{
			Field:   "analysis.short_window",
			Message: fmt.Sprintf("Short window (%d) must be positive and less than long window (%d)", a.ShortWindow, a.LongWindow),
		})
	}

	if a.RSIWindow < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.rsi_window",
			Message: "RSI window must be positive",
		})
	}

	if a.ForecastHorizon < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.forecast_horizon",
			Message: "Forecast horizon must be positive",
		})
	}

	if a.Confidence <= 0 || a.Confidence >= 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.confidence",
			Message: fmt.Sprintf("Confidence %.4f must be between 0 and 1 (exclusive)", a.Confidence),
		})
	}

	if a.EquityBase <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analysis.equity_base",
			Message: "Equity base must be positive",
		})
	}

	if !contains(ValidPeriods, a.DefaultPeriod) {
		errors = append(errors, ValidationError{
			Field:   "analysis.default_period",
			Message: fmt.Sprintf("Invalid period '%s'. Must be one of: %v", a.DefaultPeriod, ValidPeriods),
		})
	}

	if a.LookbackDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.lookback_days",
			Message: "Lookback must be at least 1 day",
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment != "production" {
		return errors
	}

	// Secrets arrive after Load when Vault is enabled; ValidateStartup
	// checks them again once applied.
	secretsPending := c.Vault.Enabled && !c.secretsApplied

	if !secretsPending && (c.FRED.APIKey == "" || isPlaceholderValue(c.FRED.APIKey)) {
		errors = append(errors, ValidationError{
			Field:   "fred.api_key",
			Message: "A real FRED API key is required in production (QUANTLENS_FRED_API_KEY or FRED_API_KEY)",
		})
	}

	if c.Database.Enabled && c.Database.SSLMode == "disable" {
		errors = append(errors, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	if !secretsPending && c.Database.Enabled && c.Database.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in production",
		})
	}

	return errors
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// isPlaceholderValue checks if a value is likely a placeholder
func isPlaceholderValue(value string) bool {
	lowerValue := strings.ToLower(value)
	placeholders := []string{
		"your_api_key",
		"changeme",
		"placeholder",
		"example",
	}

	for _, placeholder := range placeholders {
		if strings.Contains(lowerValue, placeholder) {
			return true
		}
	}

	return false
}
