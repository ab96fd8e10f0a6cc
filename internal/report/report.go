// Package report builds the daily single-asset and portfolio reports and
// delivers them as CSV files, NATS messages and stored records.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/portfolio"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// Report kinds
const (
	KindAsset     = "asset"
	KindPortfolio = "portfolio"
)

const (
	// DefaultTicker is reported when no ticker is given
	DefaultTicker = "AAPL.US"

	// DefaultPeriod bounds the price history a report is computed on
	DefaultPeriod = "5y"
)

// DefaultTickers make up the equal-weight report portfolio
var DefaultTickers = []string{"AAPL.US", "MSFT.US", "GOOG.US"}

// Report is implemented by both daily report kinds
type Report interface {
	Kind() string
	Subject() string
	ReportDate() string
	Header() []string
	Record() []string
}

// AssetReport is the daily single-asset report
type AssetReport struct {
	Date        string  `json:"date"`
	Ticker      string  `json:"ticker"`
	Open        float64 `json:"open"`
	Close       float64 `json:"close"`
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

func (r *AssetReport) Kind() string       { return KindAsset }
func (r *AssetReport) Subject() string    { return r.Ticker }
func (r *AssetReport) ReportDate() string { return r.Date }

// Header returns the CSV column names
func (r *AssetReport) Header() []string {
	return []string{"date", "ticker", "open", "close", "volatility", "max_drawdown"}
}

// Record returns the CSV row
func (r *AssetReport) Record() []string {
	return []string{r.Date, r.Ticker, formatFloat(r.Open), formatFloat(r.Close), formatFloat(r.Volatility), formatFloat(r.MaxDrawdown)}
}

// MarshalJSON renders undefined values as null
func (r *AssetReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date        string   `json:"date"`
		Ticker      string   `json:"ticker"`
		Open        *float64 `json:"open"`
		Close       *float64 `json:"close"`
		Volatility  *float64 `json:"volatility"`
		MaxDrawdown *float64 `json:"max_drawdown"`
	}{r.Date, r.Ticker, performance.Nullable(r.Open), performance.Nullable(r.Close), performance.Nullable(r.Volatility), performance.Nullable(r.MaxDrawdown)})
}

// PortfolioReport is the daily fixed-weight portfolio report
type PortfolioReport struct {
	Date            string    `json:"date"`
	Assets          []string  `json:"assets"`
	Weights         []float64 `json:"weights"`
	PortfolioReturn float64   `json:"portfolio_return"`
	Volatility      float64   `json:"volatility"`
	MaxDrawdown     float64   `json:"max_drawdown"`
}

func (r *PortfolioReport) Kind() string       { return KindPortfolio }
func (r *PortfolioReport) Subject() string    { return strings.Join(r.Assets, ",") }
func (r *PortfolioReport) ReportDate() string { return r.Date }

// Header returns the CSV column names
func (r *PortfolioReport) Header() []string {
	return []string{"date", "assets", "weights", "portfolio_return", "volatility", "max_drawdown"}
}

// Record returns the CSV row. Weights are rounded to two decimals.
func (r *PortfolioReport) Record() []string {
	weights := make([]string, len(r.Weights))
	for i, w := range r.Weights {
		weights[i] = strconv.FormatFloat(math.Round(w*100)/100, 'f', -1, 64)
	}
	return []string{
		r.Date,
		strings.Join(r.Assets, ","),
		strings.Join(weights, ","),
		formatFloat(r.PortfolioReturn),
		formatFloat(r.Volatility),
		formatFloat(r.MaxDrawdown),
	}
}

// MarshalJSON renders undefined values as null
func (r *PortfolioReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date            string    `json:"date"`
		Assets          []string  `json:"assets"`
		Weights         []float64 `json:"weights"`
		PortfolioReturn *float64  `json:"portfolio_return"`
		Volatility      *float64  `json:"volatility"`
		MaxDrawdown     *float64  `json:"max_drawdown"`
	}{r.Date, r.Assets, r.Weights, performance.Nullable(r.PortfolioReturn), performance.Nullable(r.Volatility), performance.Nullable(r.MaxDrawdown)})
}

// formatFloat writes the shortest representation; undefined values are empty
func formatFloat(v float64) string {
	if performance.IsUndefined(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// GENERATION
// ============================================================================

// Generator computes daily reports from Stooq prices
type Generator struct {
	prices market.OHLCVSource
	period string
	now    func() time.Time
}

// NewGenerator creates a report generator. An empty period uses
// DefaultPeriod.
func NewGenerator(prices market.OHLCVSource, period string) *Generator {
	if period == "" {
		period = DefaultPeriod
	}
	return &Generator{prices: prices, period: period, now: time.Now}
}

func (g *Generator) today() string {
	return g.now().Format(market.DateLayout)
}

// Asset builds the single-asset report: last open and close, annualized
// volatility of daily returns and the max drawdown of the compounded
// return index
func (g *Generator) Asset(ctx context.Context, ticker string) (*AssetReport, error) {
	const op = "report.Generator.Asset"

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		ticker = DefaultTicker
	}

	candles, err := g.prices.FetchOHLCV(ctx, ticker, g.period)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errs.Data(op, "no data available for %s", ticker)
	}

	returns := series.PctChange(market.CloseSeries(ticker, candles)).DropNaN()
	last := candles[len(candles)-1]

	r := &AssetReport{
		Date:        g.today(),
		Ticker:      ticker,
		Open:        last.Open,
		Close:       last.Close,
		Volatility:  performance.AnnualizedVolatility(returns.Values, performance.DefaultPeriodsPerYear),
		MaxDrawdown: performance.MaxDrawdown(series.Compound(returns, 1).Values),
	}

	log.Debug().
		Str("ticker", ticker).
		Int("bars", len(candles)).
		Msg("Built asset report")

	return r, nil
}

// Portfolio builds the fixed-weight portfolio report over the tickers'
// common dates. Nil weights mean equal weights; the allocation is never
// rebalanced.
func (g *Generator) Portfolio(ctx context.Context, tickers []string, weights []float64) (*PortfolioReport, error) {
	const op = "report.Generator.Portfolio"

	if len(tickers) == 0 {
		tickers = DefaultTickers
	}
	if len(weights) == 0 {
		weights = portfolio.EqualWeights(len(tickers))
	}
	if len(weights) != len(tickers) {
		return nil, errs.Config(op, "%d weights for %d tickers", len(weights), len(tickers))
	}
	weights = portfolio.NormalizeWeights(weights)

	closes := make([]*series.Series, len(tickers))
	names := make([]string, len(tickers))
	for i, t := range tickers {
		names[i] = strings.ToUpper(strings.TrimSpace(t))
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(market.MaxConcurrentFetches)
	for i, t := range names {
		eg.Go(func() error {
			candles, err := g.prices.FetchOHLCV(gctx, t, g.period)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", t, err)
			}
			if len(candles) == 0 {
				return errs.Data(op, "no data available for %s", t)
			}
			closes[i] = market.CloseSeries(t, candles)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	returns := series.ComputeReturns(series.InnerJoin(closes...))
	if returns.Empty() {
		return nil, errs.Data(op, "no common price history for %s", strings.Join(names, ", "))
	}

	portRet, err := portfolio.Returns(returns, weights, portfolio.RebalanceNone)
	if err != nil {
		return nil, err
	}
	equity := portfolio.Value(portRet, 1)

	return &PortfolioReport{
		Date:            g.today(),
		Assets:          names,
		Weights:         weights,
		PortfolioReturn: portRet.Last(),
		Volatility:      performance.AnnualizedVolatility(portRet.Values, performance.DefaultPeriodsPerYear),
		MaxDrawdown:     performance.MaxDrawdown(equity.Values),
	}, nil
}
