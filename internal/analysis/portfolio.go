package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/portfolio"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

const (
	// DefaultMinAssets is the smallest portfolio accepted
	DefaultMinAssets = 3

	// DefaultStartDate is the default beginning of the portfolio window
	DefaultStartDate = "2015-01-01"

	// PortfolioValueBase is the start value of the simulated portfolio
	PortfolioValueBase = 1.0

	// LatestRows is the number of aligned level rows returned with a result
	LatestRows = 30

	topCorrelations = 3
)

// PortfolioRequest selects the assets, weights, rebalancing policy and
// window of a portfolio analysis. Assets are catalog labels; SeriesIDs are
// raw FRED identifiers used when no labels are given. With neither, the
// catalog defaults are analysed. Missing weights mean equal weights.
type PortfolioRequest struct {
	Assets    []string  `json:"assets,omitempty"`
	SeriesIDs []string  `json:"series_ids,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
	Rebalance string    `json:"rebalance,omitempty"`
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
}

// PortfolioResult is the outcome of a portfolio analysis
type PortfolioResult struct {
	RunID     uuid.UUID                     `json:"run_id"`
	Assets    []string                      `json:"assets"`
	SeriesIDs []string                      `json:"series_ids"`
	Weights   []float64                     `json:"weights"`
	Policy    portfolio.RebalancePolicy     `json:"policy"`
	Range     market.DateRange              `json:"range"`
	Metrics   *performance.PortfolioMetrics `json:"metrics"`

	// Value is the portfolio value from PortfolioValueBase
	Value *series.Series `json:"value"`

	// Cumulative holds (1+r) compounded per asset plus the Portfolio column
	Cumulative *series.Table `json:"cumulative"`

	// Latest holds the last aligned level observations
	Latest *series.Table `json:"latest"`

	Rebalances      []portfolio.RebalanceEvent `json:"rebalances"`
	Turnover        float64                    `json:"turnover"`
	TopCorrelations []string                   `json:"top_correlations"`
	Report          string                     `json:"report"`
}

// AnalyzePortfolio fetches the selected series, simulates the weighted
// portfolio under the rebalancing policy and computes its metrics
func (s *Service) AnalyzePortfolio(ctx context.Context, req PortfolioRequest) (*PortfolioResult, error) {
	start := time.Now()
	runID := uuid.New()

	result, err := s.analyzePortfolio(ctx, req, runID)
	subject := strings.Join(req.Assets, ",")
	if result != nil {
		subject = strings.Join(result.SeriesIDs, ",")
	}
	s.finish(ctx, KindPortfolio, subject, runID, req, start, err)
	return result, err
}

func (s *Service) analyzePortfolio(ctx context.Context, req PortfolioRequest, runID uuid.UUID) (*PortfolioResult, error) {
	const op = "analysis.AnalyzePortfolio"

	if s.series == nil {
		return nil, errs.Config(op, "no series provider configured")
	}

	policyName := req.Rebalance
	if policyName == "" {
		policyName = s.cfg.Rebalance
	}
	policy, err := portfolio.ParseRebalancePolicy(policyName)
	if err != nil {
		return nil, err
	}

	labels, ids, err := s.selectAssets(op, req)
	if err != nil {
		return nil, err
	}
	if len(ids) < s.cfg.MinAssets {
		return nil, errs.Config(op, "please select at least %d assets, got %d", s.cfg.MinAssets, len(ids))
	}
	if len(req.Weights) > 0 && len(req.Weights) != len(ids) {
		return nil, errs.Config(op, "%d weights for %d assets", len(req.Weights), len(ids))
	}

	r, err := s.dateRange(op, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	metrics.PortfolioAssets.Observe(float64(len(ids)))

	levels, err := market.FetchMulti(ctx, s.series, ids, r)
	if err != nil {
		return nil, err
	}
	levels = levels.DropNaN()
	if levels, err = levels.WithColumns(labels); err != nil {
		return nil, err
	}

	returns := series.ComputeReturns(levels)
	if returns.Empty() {
		return nil, errs.Data(op, "no aligned return rows for %s between %s", strings.Join(ids, ", "), r)
	}

	raw := req.Weights
	if len(raw) == 0 {
		raw = make([]float64, len(ids))
	}
	weights := portfolio.NormalizeWeights(raw)

	sim, err := portfolio.Simulate(returns, weights, policy)
	if err != nil {
		return nil, err
	}
	value := portfolio.Value(sim.Returns, PortfolioValueBase)
	m := performance.ComputePortfolioMetrics(sim.Returns, value, returns, s.cfg.PeriodsPerYear)

	result := &PortfolioResult{
		RunID:           runID,
		Assets:          labels,
		SeriesIDs:       ids,
		Weights:         weights,
		Policy:          policy,
		Range:           r,
		Metrics:         m,
		Value:           value,
		Cumulative:      cumulative(returns, value),
		Latest:          levels.Tail(LatestRows),
		Rebalances:      sim.Events,
		Turnover:        sim.TotalTurnover(),
		TopCorrelations: performance.TopCorrelations(m.Correlation, topCorrelations),
	}
	result.Report = performance.GenerateReport(performance.ReportInput{
		Title:     "Portfolio Analysis",
		Assets:    labels,
		Weights:   weights,
		Policy:    policy.String(),
		Portfolio: m,
	})
	return result, nil
}

// selectAssets returns display labels and FRED ids for the request
func (s *Service) selectAssets(op string, req PortfolioRequest) ([]string, []string, error) {
	switch {
	case len(req.Assets) > 0:
		if s.catalog == nil {
			return nil, nil, errs.Config(op, "asset labels require a catalog")
		}
		ids, err := s.catalog.Resolve(req.Assets)
		if err != nil {
			return nil, nil, err
		}
		labels := make([]string, len(req.Assets))
		for i, l := range req.Assets {
			labels[i] = strings.TrimSpace(l)
		}
		return labels, ids, nil

	case len(req.SeriesIDs) > 0:
		ids := make([]string, 0, len(req.SeriesIDs))
		for _, id := range req.SeriesIDs {
			id = strings.ToUpper(strings.TrimSpace(id))
			if id == "" {
				return nil, nil, errs.Config(op, "empty series id")
			}
			ids = append(ids, id)
		}
		return ids, ids, nil

	case s.catalog != nil:
		return s.catalog.Defaults(), s.catalog.DefaultSeriesIDs(), nil

	default:
		return nil, nil, errs.Config(op, "no assets selected")
	}
}

// dateRange parses the request window, defaulting to DefaultStartDate and
// today
func (s *Service) dateRange(op, start, end string) (market.DateRange, error) {
	if start == "" {
		start = DefaultStartDate
	}
	from, err := time.Parse(market.DateLayout, start)
	if err != nil {
		return market.DateRange{}, errs.Config(op, "invalid start date %q", start)
	}

	var to time.Time
	if end == "" {
		now := s.now().UTC()
		to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else if to, err = time.Parse(market.DateLayout, end); err != nil {
		return market.DateRange{}, errs.Config(op, "invalid end date %q", end)
	}

	if !from.Before(to) {
		return market.DateRange{}, errs.Config(op, "start date must be < end date")
	}
	return market.DateRange{Start: from, End: to}, nil
}

// cumulative compounds every asset from 1 and appends the portfolio value
func cumulative(returns *series.Table, value *series.Series) *series.Table {
	assets := series.CompoundTable(returns)
	columns := append(append([]string(nil), assets.Columns...), portfolio.SeriesName)
	rows := make([][]float64, assets.Rows())
	for i, row := range assets.Values {
		rows[i] = append(append(make([]float64, 0, len(row)+1), row...), value.Values[i])
	}
	return &series.Table{Dates: assets.Dates, Columns: columns, Values: rows}
}
