package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// DefaultCacheTTL is how long a fetched series stays cached
const DefaultCacheTTL = 300 * time.Second

const keyPrefix = "quantlens:series:"

// SeriesCache provides Redis-based caching for fetched price series
type SeriesCache struct {
	client *redis.Client
	ttl    time.Duration
}

// seriesCacheEntry represents a cached series with metadata
type seriesCacheEntry struct {
	ID       string      `json:"id"`
	Dates    []time.Time `json:"dates"`
	Values   []float64   `json:"values"`
	CachedAt time.Time   `json:"cached_at"`
}

// NewSeriesCache creates a new Redis-based series cache.
// If client is nil, returns nil (optional Redis support)
func NewSeriesCache(client *redis.Client, ttl time.Duration) *SeriesCache {
	if client == nil {
		return nil
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &SeriesCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a series from cache.
// Returns the series and true if found, or nil and false on a miss or error
func (c *SeriesCache) Get(ctx context.Context, id string, r DateRange) (*series.Series, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	key := c.buildKey(id, r)

	// Use a short timeout for cache operations to prevent blocking
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
			metrics.RecordCacheLookup(metrics.CacheError)
			return nil, false
		}
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, false
	}

	var entry seriesCacheEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil || len(entry.Dates) != len(entry.Values) {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cached series")
		metrics.RecordCacheLookup(metrics.CacheError)
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheHit)
	log.Debug().
		Str("series_id", id).
		Int("values", len(entry.Values)).
		Time("cached_at", entry.CachedAt).
		Msg("Cache hit for series")

	return &series.Series{Name: entry.ID, Dates: entry.Dates, Values: entry.Values}, true
}

// Set stores a series in cache with the configured TTL
func (c *SeriesCache) Set(ctx context.Context, id string, r DateRange, s *series.Series) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	key := c.buildKey(id, r)

	entry := seriesCacheEntry{
		ID:       id,
		Dates:    s.Dates,
		Values:   s.Values,
		CachedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal series entry: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to cache series")
		return err
	}

	log.Debug().
		Str("series_id", id).
		Int("values", len(s.Values)).
		Dur("ttl", c.ttl).
		Msg("Cached series")

	return nil
}

// Invalidate removes every cached range of a series
func (c *SeriesCache) Invalidate(ctx context.Context, id string) (int, error) {
	if c == nil || c.client == nil {
		return 0, fmt.Errorf("cache not initialized")
	}
	return c.deletePattern(ctx, keyPrefix+id+":*")
}

// Clear removes all series cache entries
func (c *SeriesCache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	count, err := c.deletePattern(ctx, keyPrefix+"*")
	if err != nil {
		return err
	}

	log.Info().
		Int("keys_deleted", count).
		Msg("Cleared series cache")

	return nil
}

// Health checks if the Redis connection is healthy
func (c *SeriesCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

func (c *SeriesCache) deletePattern(ctx context.Context, pattern string) (int, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := c.client.Scan(cacheCtx, 0, pattern, 0).Iterator()
	count := 0

	for iter.Next(cacheCtx) {
		if err := c.client.Del(cacheCtx, iter.Val()).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete cache key")
		} else {
			count++
		}
	}

	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("cache scan error: %w", err)
	}
	return count, nil
}

// buildKey creates a Redis key for a series id and range
func (c *SeriesCache) buildKey(id string, r DateRange) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, id, formatDate(r.Start), formatDate(r.End))
}
