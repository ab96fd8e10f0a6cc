package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Snapshot holds the slowly changing values refreshed by the Updater
type Snapshot struct {
	CatalogEntries int
	StoredReports  int64
	DBActive       int32
	DBIdle         int32
}

// SnapshotFunc collects a Snapshot; a nil func is skipped
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// Updater periodically refreshes gauges from application state
type Updater struct {
	collect  SnapshotFunc
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(collect SnapshotFunc, interval time.Duration) *Updater {
	return &Updater{
		collect:  collect,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop; it blocks until stopped
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Update immediately on start
	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

func (u *Updater) update(ctx context.Context) {
	if u.collect == nil {
		return
	}

	snap, err := u.collect(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to collect metrics snapshot")
		RecordError("snapshot", "metrics_updater")
		return
	}

	CatalogEntries.Set(float64(snap.CatalogEntries))
	StoredReports.Set(float64(snap.StoredReports))
	UpdateDatabaseConnections(snap.DBActive, snap.DBIdle)

	log.Debug().
		Int("catalog_entries", snap.CatalogEntries).
		Int64("stored_reports", snap.StoredReports).
		Msg("Metrics updated")
}
