// Package vault reads QuantLens credentials from a HashiCorp Vault KV v2
// secret.
//
// For local development run Vault in dev mode and export VAULT_TOKEN. In
// production use a token issued by AppRole or Kubernetes auth and an https
// address.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/metrics"
)

const providerName = "vault"

// Secret keys read by ApplySecrets
const (
	KeyFREDAPIKey       = "fred_api_key"
	KeyDatabasePassword = "database_password"
	KeyRedisPassword    = "redis_password"
)

// Known insecure development tokens that should trigger warnings.
var insecureDevTokens = map[string]bool{
	"root": true,
	"dev":  true,
	"test": true,
}

// ErrSecretNotFound is returned when no secret exists at a path
var ErrSecretNotFound = errors.New("secret not found")

// Client reads secrets from one KV v2 mount and caches them.
type Client struct {
	kv       *api.KVv2
	sys      *api.Sys
	address  string
	cache    map[string]*cachedSecret
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
}

type cachedSecret struct {
	data      map[string]interface{}
	expiresAt time.Time
}

// Config holds Vault client configuration.
type Config struct {
	Address  string        // Vault server address (default: VAULT_ADDR or http://localhost:8200)
	Token    string        // Vault token (default: VAULT_TOKEN)
	Mount    string        // KV v2 mount (default: secret)
	CacheTTL time.Duration // How long to cache secrets (default: 5 minutes)
	Timeout  time.Duration // HTTP client timeout (default: 30 seconds)
}

// NewClient creates a new Vault client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		cfg.Address = os.Getenv("VAULT_ADDR")
		if cfg.Address == "" {
			cfg.Address = "http://localhost:8200"
		}
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token is required (set VAULT_TOKEN)")
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if insecureDevTokens[cfg.Token] {
		log.Warn().
			Str("vault_addr", cfg.Address).
			Msg("SECURITY WARNING: Using known insecure development token. DO NOT use in production!")
	}
	if strings.HasPrefix(cfg.Address, "http://") && !strings.Contains(cfg.Address, "localhost") && !strings.Contains(cfg.Address, "127.0.0.1") {
		log.Warn().
			Str("vault_addr", cfg.Address).
			Msg("SECURITY WARNING: Using unencrypted HTTP connection to non-localhost Vault. Use HTTPS in production!")
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Timeout = cfg.Timeout
	apiCfg.MaxRetries = 1

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	log.Info().
		Str("vault_addr", cfg.Address).
		Str("mount", cfg.Mount).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Vault client initialized")

	return &Client{
		kv:       client.KVv2(cfg.Mount),
		sys:      client.Sys(),
		address:  cfg.Address,
		cache:    make(map[string]*cachedSecret),
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// GetSecret retrieves the latest version of the secret at path, relative
// to the mount.
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	if cached := c.getCached(path); cached != nil {
		log.Debug().Str("path", path).Msg("Vault secret retrieved from cache")
		return cached, nil
	}

	startTime := time.Now()
	secret, err := c.kv.Get(ctx, path)
	durationMs := float64(time.Since(startTime).Milliseconds())

	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			metrics.RecordProviderRequest(providerName, "get_secret", durationMs, nil)
			return nil, fmt.Errorf("%w at path: %s", ErrSecretNotFound, path)
		}
		metrics.RecordProviderRequest(providerName, "get_secret", durationMs, err)
		log.Warn().Err(err).Str("path", path).Str("vault_addr", c.address).Msg("Failed to fetch secret from Vault")
		return nil, fmt.Errorf("failed to fetch secret from vault: %w", err)
	}
	metrics.RecordProviderRequest(providerName, "get_secret", durationMs, nil)

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w at path: %s", ErrSecretNotFound, path)
	}

	c.setCached(path, secret.Data)

	version := 0
	if secret.VersionMetadata != nil {
		version = secret.VersionMetadata.Version
	}
	log.Debug().Str("path", path).Int("version", version).Msg("Vault secret retrieved and cached")

	return secret.Data, nil
}

// GetSecretString retrieves a specific string value from a secret.
func (c *Client) GetSecretString(ctx context.Context, path, key string) (string, error) {
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret at %s", key, path)
	}

	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("key %q is not a string at %s", key, path)
	}

	return strValue, nil
}

func (c *Client) getCached(path string) map[string]interface{} {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	cached, ok := c.cache[path]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.data
}

func (c *Client) setCached(path string, data map[string]interface{}) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.cache[path] = &cachedSecret{
		data:      data,
		expiresAt: time.Now().Add(c.cacheTTL),
	}
}

// ClearCache clears the secret cache.
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]*cachedSecret)
}

// Health checks that Vault is initialized and unsealed.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.sys.HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !resp.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if resp.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// ApplySecrets overrides the FRED API key and the database and Redis
// passwords with the values stored at path. Missing keys leave the
// configured value in place.
func (c *Client) ApplySecrets(ctx context.Context, path string, cfg *config.Config) error {
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return err
	}

	applied := 0
	for key, dst := range map[string]*string{
		KeyFREDAPIKey:       &cfg.FRED.APIKey,
		KeyDatabasePassword: &cfg.Database.Password,
		KeyRedisPassword:    &cfg.Redis.Password,
	} {
		value, ok := data[key]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("key %q is not a string at %s", key, path)
		}
		if s != "" {
			*dst = s
			applied++
		}
	}

	cfg.MarkSecretsApplied()
	log.Info().Str("path", path).Int("applied", applied).Msg("Applied secrets from Vault")
	return nil
}

// Load creates a client from the Vault section of cfg and applies its
// secrets. It is a no-op when Vault is disabled.
func Load(ctx context.Context, cfg *config.Config) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	client, err := NewClient(Config{
		Address:  cfg.Vault.Address,
		Mount:    cfg.Vault.Mount,
		CacheTTL: cfg.Vault.GetCacheTTL(),
	})
	if err != nil {
		return err
	}
	return client.ApplySecrets(ctx, cfg.Vault.Path, cfg)
}
