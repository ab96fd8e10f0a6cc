package market

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/pkg/series"
)

// CachedFetcher wraps a SeriesFetcher with the Redis series cache. Cache
// failures fall through to a live fetch.
type CachedFetcher struct {
	fetcher SeriesFetcher
	cache   *SeriesCache
}

// NewCachedFetcher creates a cached fetcher. A nil cache disables caching.
func NewCachedFetcher(fetcher SeriesFetcher, cache *SeriesCache) *CachedFetcher {
	return &CachedFetcher{
		fetcher: fetcher,
		cache:   cache,
	}
}

// FetchSeries returns the cached series or fetches and caches it
func (c *CachedFetcher) FetchSeries(ctx context.Context, id string, r DateRange) (*series.Series, error) {
	if s, ok := c.cache.Get(ctx, id, r); ok {
		return s, nil
	}

	log.Debug().
		Str("series_id", id).
		Str("range", r.String()).
		Msg("Cache miss, fetching series")

	return c.Refresh(ctx, id, r)
}

// Refresh fetches the series live and overwrites the cached copy
func (c *CachedFetcher) Refresh(ctx context.Context, id string, r DateRange) (*series.Series, error) {
	s, err := c.fetcher.FetchSeries(ctx, id, r)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		// Cache write failures are logged by the cache and never fail the fetch
		_ = c.cache.Set(ctx, id, r, s)
	}
	return s, nil
}

// Cache returns the underlying series cache, nil when caching is disabled
func (c *CachedFetcher) Cache() *SeriesCache {
	return c.cache
}
