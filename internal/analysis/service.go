// Package analysis orchestrates provider fetches and the analytics core:
// portfolio simulation on FRED series and single-asset strategy analysis
// on Stooq prices.
package analysis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/catalog"
	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/db"
	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/strategy"
)

// Analysis kinds, used as metric labels and run kinds
const (
	KindPortfolio = "portfolio"
	KindAsset     = "asset"
	KindSearch    = "search"
)

// RunRecorder stores an audit record per analysis
type RunRecorder interface {
	Record(ctx context.Context, run *db.AnalysisRun) error
}

// Deps are the collaborators of a Service. Runs may be nil.
type Deps struct {
	Series   market.SeriesFetcher
	Searcher market.Searcher
	Prices   market.OHLCVSource
	Catalog  *catalog.Catalog
	Runs     RunRecorder
}

// Service runs portfolio and single-asset analyses
type Service struct {
	cfg      config.AnalysisConfig
	series   market.SeriesFetcher
	searcher market.Searcher
	prices   market.OHLCVSource
	catalog  *catalog.Catalog
	runs     RunRecorder
	now      func() time.Time
}

// NewService creates an analysis service. Zero config fields fall back to
// the package defaults.
func NewService(cfg config.AnalysisConfig, deps Deps) *Service {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = performance.DefaultPeriodsPerYear
	}
	if cfg.Rebalance == "" {
		cfg.Rebalance = "Monthly"
	}
	if cfg.MinAssets <= 0 {
		cfg.MinAssets = DefaultMinAssets
	}
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = strategy.DefaultShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = strategy.DefaultLongWindow
	}
	if cfg.RSIWindow <= 0 {
		cfg.RSIWindow = strategy.DefaultRSIWindow
	}
	if cfg.ForecastHorizon <= 0 {
		cfg.ForecastHorizon = strategy.DefaultHorizon
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = strategy.DefaultConfidence
	}
	if cfg.EquityBase <= 0 {
		cfg.EquityBase = performance.DefaultEquityBase
	}
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = market.DefaultPeriod
	}

	return &Service{
		cfg:      cfg,
		series:   deps.Series,
		searcher: deps.Searcher,
		prices:   deps.Prices,
		catalog:  deps.Catalog,
		runs:     deps.Runs,
		now:      time.Now,
	}
}

// Config returns the effective analysis settings
func (s *Service) Config() config.AnalysisConfig {
	return s.cfg
}

// Catalog returns the catalog the service resolves labels against
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// finish records metrics and the audit run for one analysis
func (s *Service) finish(ctx context.Context, kind, subject string, runID uuid.UUID, params interface{}, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.RecordAnalysis(kind, float64(elapsed.Milliseconds()), err)

	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", kind).
			Str("subject", subject).
			Dur("duration", elapsed).
			Msg("Analysis failed")
		return
	}

	log.Info().
		Str("kind", kind).
		Str("subject", subject).
		Str("run_id", runID.String()).
		Dur("duration", elapsed).
		Msg("Analysis completed")

	if s.runs == nil {
		return
	}
	raw, mErr := json.Marshal(params)
	if mErr != nil {
		raw = nil
	}
	run := &db.AnalysisRun{
		RunID:      runID,
		Kind:       kind,
		Subject:    subject,
		Params:     raw,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  s.now().UTC(),
	}
	if rErr := s.runs.Record(ctx, run); rErr != nil {
		log.Warn().Err(rErr).Str("run_id", runID.String()).Msg("Failed to record analysis run")
	}
}
