package performance

import (
	"encoding/json"
	"math"
	"time"

	"github.com/ajitpratap0/quantlens/pkg/series"
)

// ============================================================================
// METRIC BUNDLES
// ============================================================================

// PortfolioMetrics holds the metrics of a simulated portfolio
type PortfolioMetrics struct {
	AnnualizedReturn     float64   `json:"annualized_return"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	FinalValue           float64   `json:"final_value"`
	Correlation          *Matrix   `json:"correlation"`
	Periods              int       `json:"periods"`
	PeriodsPerYear       int       `json:"periods_per_year"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
}

// MarshalJSON renders undefined metrics as null
func (m PortfolioMetrics) MarshalJSON() ([]byte, error) {
	type alias PortfolioMetrics
	return json.Marshal(struct {
		alias
		AnnualizedReturn     *float64 `json:"annualized_return"`
		AnnualizedVolatility *float64 `json:"annualized_volatility"`
		SharpeRatio          *float64 `json:"sharpe_ratio"`
		MaxDrawdown          *float64 `json:"max_drawdown"`
		FinalValue           *float64 `json:"final_value"`
	}{
		alias:                alias(m),
		AnnualizedReturn:     Nullable(m.AnnualizedReturn),
		AnnualizedVolatility: Nullable(m.AnnualizedVolatility),
		SharpeRatio:          Nullable(m.SharpeRatio),
		MaxDrawdown:          Nullable(m.MaxDrawdown),
		FinalValue:           Nullable(m.FinalValue),
	})
}

// Summary holds the single-asset metrics used for buy-and-hold and
// strategy comparisons
type Summary struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Periods          int     `json:"periods"`
}

// MarshalJSON renders undefined metrics as null
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalReturn      *float64 `json:"total_return"`
		AnnualizedReturn *float64 `json:"annualized_return"`
		Volatility       *float64 `json:"volatility"`
		SharpeRatio      *float64 `json:"sharpe_ratio"`
		MaxDrawdown      *float64 `json:"max_drawdown"`
		Periods          int      `json:"periods"`
	}{
		Nullable(s.TotalReturn),
		Nullable(s.AnnualizedReturn),
		Nullable(s.Volatility),
		Nullable(s.SharpeRatio),
		Nullable(s.MaxDrawdown),
		s.Periods,
	})
}

// ComputePortfolioMetrics derives the portfolio bundle from the simulated
// return and value series plus the underlying asset returns
func ComputePortfolioMetrics(portReturns, portValue *series.Series, assetReturns *series.Table, periodsPerYear int) *PortfolioMetrics {
	annRet := AnnualizedReturn(portReturns.Values, periodsPerYear)
	annVol := AnnualizedVolatility(portReturns.Values, periodsPerYear)

	m := &PortfolioMetrics{
		AnnualizedReturn:     annRet,
		AnnualizedVolatility: annVol,
		SharpeRatio:          SharpeRatio(annRet, annVol),
		MaxDrawdown:          MaxDrawdown(portValue.Values),
		FinalValue:           portValue.Last(),
		Periods:              portReturns.Len(),
		PeriodsPerYear:       ppy(periodsPerYear),
	}
	if assetReturns != nil {
		m.Correlation = CorrelationMatrix(assetReturns)
	}
	if n := portReturns.Len(); n > 0 {
		m.StartDate = portReturns.Dates[0]
		m.EndDate = portReturns.Dates[n-1]
	}
	return m
}

// EquityCurve compounds returns from DefaultEquityBase, treating undefined
// returns as flat periods
func EquityCurve(returns *series.Series) *series.Series {
	curve := series.Compound(returns, DefaultEquityBase)
	curve.Name = "Equity"
	return curve
}

// BuyAndHold summarises holding the asset over the whole price series.
// Total return is measured on prices; annualization spans the number of
// defined returns.
func BuyAndHold(prices *series.Series) *Summary {
	clean := prices.DropNaN()
	returns := series.PctChange(clean).DropNaN()

	total := TotalReturn(clean.Values)
	n := returns.Len()
	annRet := AnnualizedFromTotal(total, n, DefaultPeriodsPerYear)
	vol := AnnualizedVolatility(returns.Values, DefaultPeriodsPerYear)

	return &Summary{
		TotalReturn:      total,
		AnnualizedReturn: annRet,
		Volatility:       vol,
		SharpeRatio:      SharpeRatio(annRet, vol),
		MaxDrawdown:      MaxDrawdown(EquityCurve(returns).Values),
		Periods:          n,
	}
}

// StrategySummary summarises a series of defined strategy returns. Total
// return is compounded from the returns themselves.
func StrategySummary(returns []float64) *Summary {
	defined := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !IsUndefined(r) {
			defined = append(defined, r)
		}
	}

	n := len(defined)
	if n == 0 {
		return &Summary{
			TotalReturn:      math.NaN(),
			AnnualizedReturn: math.NaN(),
			Volatility:       math.NaN(),
			SharpeRatio:      math.NaN(),
			MaxDrawdown:      0,
		}
	}

	total := CompoundedReturn(defined)
	annRet := AnnualizedFromTotal(total, n, DefaultPeriodsPerYear)
	vol := AnnualizedVolatility(defined, DefaultPeriodsPerYear)

	equity := make([]float64, n)
	acc := DefaultEquityBase
	for i, r := range defined {
		acc *= 1 + r
		equity[i] = acc
	}

	return &Summary{
		TotalReturn:      total,
		AnnualizedReturn: annRet,
		Volatility:       vol,
		SharpeRatio:      SharpeRatio(annRet, vol),
		MaxDrawdown:      MaxDrawdown(equity),
		Periods:          n,
	}
}
