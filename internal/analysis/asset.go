package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/series"
	"github.com/ajitpratap0/quantlens/pkg/strategy"
)

// DefaultTicker is analysed when a request names no ticker
const DefaultTicker = "AAPL.US"

// AssetRequest selects the ticker, lookback period and strategy parameters
// of a single-asset analysis. Zero values use the service defaults.
type AssetRequest struct {
	Ticker      string  `json:"ticker"`
	Period      string  `json:"period,omitempty"`
	ShortWindow int     `json:"short_window,omitempty"`
	LongWindow  int     `json:"long_window,omitempty"`
	RSIWindow   int     `json:"rsi_window,omitempty"`
	Horizon     int     `json:"horizon,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// AssetResult is the outcome of a single-asset analysis
type AssetResult struct {
	RunID  uuid.UUID `json:"run_id"`
	Ticker string    `json:"ticker"`
	Period string    `json:"period"`

	Prices  *series.Series       `json:"prices"`
	BuyHold *performance.Summary `json:"buy_hold"`

	// Equity is the buy-and-hold equity curve from the configured base
	Equity *series.Series `json:"equity"`

	Crossover *strategy.Crossover `json:"crossover"`
	Entries   []time.Time         `json:"entries"`
	Exits     []time.Time         `json:"exits"`

	RSI       *series.Series `json:"rsi"`
	LatestRSI *float64       `json:"latest_rsi"`
	RSISignal string         `json:"rsi_signal"`

	// Forecast is nil when the history is too short to fit
	Forecast *strategy.Forecast `json:"forecast,omitempty"`

	Report string `json:"report"`
}

// AnalyzeAsset downloads the ticker's daily prices and runs buy-and-hold,
// the moving average crossover, RSI and the log-linear forecast on them
func (s *Service) AnalyzeAsset(ctx context.Context, req AssetRequest) (*AssetResult, error) {
	start := time.Now()
	runID := uuid.New()

	result, err := s.analyzeAsset(ctx, req, runID)
	s.finish(ctx, KindAsset, strings.ToUpper(strings.TrimSpace(req.Ticker)), runID, req, start, err)
	return result, err
}

func (s *Service) analyzeAsset(ctx context.Context, req AssetRequest, runID uuid.UUID) (*AssetResult, error) {
	const op = "analysis.AnalyzeAsset"

	if s.prices == nil {
		return nil, errs.Config(op, "no price provider configured")
	}
	req = s.withAssetDefaults(req)
	if _, ok := market.PeriodDays[req.Period]; !ok {
		return nil, errs.Config(op, "unknown period %q (expected 6mo, 1y, 2y or 5y)", req.Period)
	}
	if req.ShortWindow >= req.LongWindow {
		return nil, errs.Config(op, "short window %d must be below long window %d", req.ShortWindow, req.LongWindow)
	}
	if req.Confidence <= 0 || req.Confidence >= 1 {
		return nil, errs.Config(op, "confidence must be in (0, 1), got %g", req.Confidence)
	}

	candles, err := s.prices.FetchOHLCV(ctx, req.Ticker, req.Period)
	if err != nil {
		return nil, err
	}
	prices := market.CloseSeries(req.Ticker, candles).DropNaN()
	if prices.Empty() {
		return nil, errs.Data(op, "No data available for this ticker.")
	}

	cross, err := strategy.MovingAverageCrossover(prices, req.ShortWindow, req.LongWindow)
	if err != nil {
		return nil, err
	}
	rsi, err := strategy.RSI(prices, req.RSIWindow)
	if err != nil {
		return nil, err
	}
	latest := latestDefined(rsi)

	forecast, err := strategy.LinearForecast(prices, req.Horizon, req.Confidence)
	if err != nil {
		if !errors.Is(err, errs.ErrData) {
			return nil, err
		}
		log.Debug().Err(err).Str("ticker", req.Ticker).Msg("Skipping forecast")
		forecast = nil
	}

	buyHold := performance.BuyAndHold(prices)
	result := &AssetResult{
		RunID:     runID,
		Ticker:    req.Ticker,
		Period:    req.Period,
		Prices:    prices,
		BuyHold:   buyHold,
		Equity:    series.Compound(series.PctChange(prices), s.cfg.EquityBase),
		Crossover: cross,
		Entries:   cross.Entries(),
		Exits:     cross.Exits(),
		RSI:       rsi,
		LatestRSI: performance.Nullable(latest),
		RSISignal: strategy.RSISignal(latest),
		Forecast:  forecast,
	}
	result.Report = performance.GenerateReport(performance.ReportInput{
		Title:     "Single Asset Analysis",
		Ticker:    req.Ticker,
		BuyHold:   buyHold,
		Strategy:  cross.Summary,
		LatestRSI: latest,
	})
	return result, nil
}

func (s *Service) withAssetDefaults(req AssetRequest) AssetRequest {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		req.Ticker = DefaultTicker
	}
	if req.Period == "" {
		req.Period = s.cfg.DefaultPeriod
	}
	if req.ShortWindow <= 0 {
		req.ShortWindow = s.cfg.ShortWindow
	}
	if req.LongWindow <= 0 {
		req.LongWindow = s.cfg.LongWindow
	}
	if req.RSIWindow <= 0 {
		req.RSIWindow = s.cfg.RSIWindow
	}
	if req.Horizon <= 0 {
		req.Horizon = s.cfg.ForecastHorizon
	}
	if req.Confidence == 0 {
		req.Confidence = s.cfg.Confidence
	}
	return req
}

// latestDefined returns the last defined value of s, NaN if there is none
func latestDefined(s *series.Series) float64 {
	if s == nil {
		return math.NaN()
	}
	return s.DropNaN().Last()
}
