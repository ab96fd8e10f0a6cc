package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Warmer periodically refreshes the cached lookback window of a fixed set of
// series so portfolio analyses of the default catalog hit the cache
type Warmer struct {
	fetcher      *CachedFetcher
	ids          []string
	lookbackDays int
	interval     time.Duration
	now          func() time.Time
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewWarmer creates a cache warmer for ids
func NewWarmer(fetcher *CachedFetcher, ids []string, lookbackDays int, interval time.Duration) *Warmer {
	return &Warmer{
		fetcher:      fetcher,
		ids:          ids,
		lookbackDays: lookbackDays,
		interval:     interval,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start refreshes immediately and then on every tick until stopped
func (w *Warmer) Start(ctx context.Context) error {
	log.Info().
		Strs("series", w.ids).
		Dur("interval", w.interval).
		Msg("Starting series cache warmer")

	w.warmAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Series cache warmer stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			log.Info().Msg("Series cache warmer stopped")
			return nil
		case <-ticker.C:
			w.warmAll(ctx)
		}
	}
}

// Stop stops the warmer
func (w *Warmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// warmAll refreshes every series, continuing past failures. It returns the
// number of series refreshed.
func (w *Warmer) warmAll(ctx context.Context) int {
	startTime := time.Now()
	r := LookbackRange(w.lookbackDays, w.now())

	refreshed := 0
	for _, id := range w.ids {
		if _, err := w.fetcher.Refresh(ctx, id, r); err != nil {
			log.Error().
				Err(err).
				Str("series_id", id).
				Msg("Failed to warm series")
			continue
		}
		refreshed++
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("refreshed", refreshed).
		Int("series_count", len(w.ids)).
		Msg("Completed series cache warm-up")

	return refreshed
}
