// Performance metrics for return and value series
package performance

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ajitpratap0/quantlens/pkg/series"
)

// DefaultPeriodsPerYear is the number of trading days used for annualization
const DefaultPeriodsPerYear = 252

// DefaultEquityBase is the start value of single-asset equity curves
const DefaultEquityBase = 100.0

// ============================================================================
// PERIOD-BASED ESTIMATORS (portfolio path)
// ============================================================================

// AnnualizedReturn is the mean periodic return scaled by periodsPerYear.
// A non-positive periodsPerYear uses DefaultPeriodsPerYear.
func AnnualizedReturn(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	return stat.Mean(returns, nil) * float64(ppy(periodsPerYear))
}

// AnnualizedVolatility is the sample standard deviation of periodic returns
// scaled by sqrt(periodsPerYear).
func AnnualizedVolatility(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	return stat.StdDev(returns, nil) * math.Sqrt(float64(ppy(periodsPerYear)))
}

// SharpeRatio divides annualized return by annualized volatility without a
// risk-free rate. Zero or undefined volatility yields the undefined sentinel.
func SharpeRatio(annualizedReturn, annualizedVolatility float64) float64 {
	if annualizedVolatility == 0 || IsUndefined(annualizedVolatility) || IsUndefined(annualizedReturn) {
		return math.NaN()
	}
	return annualizedReturn / annualizedVolatility
}

// MaxDrawdown is the worst relative decline from the running peak of a
// value series. It is never positive and is 0 for a non-decreasing series.
func MaxDrawdown(values []float64) float64 {
	worst := 0.0
	peak := math.Inf(-1)
	for _, v := range values {
		if IsUndefined(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// DrawdownSeries returns value/running-max - 1 for every observation
func DrawdownSeries(values *series.Series) *series.Series {
	out := &series.Series{
		Name:   "Drawdown",
		Dates:  values.Dates,
		Values: make([]float64, values.Len()),
	}
	peak := math.Inf(-1)
	for i, v := range values.Values {
		if v > peak {
			peak = v
		}
		out.Values[i] = v/peak - 1
	}
	return out
}

// ============================================================================
// TOTAL-RETURN ESTIMATORS (single-asset path)
// ============================================================================

// TotalReturn is last/first - 1 over a price series
func TotalReturn(prices []float64) float64 {
	if len(prices) == 0 || prices[0] == 0 {
		return math.NaN()
	}
	return prices[len(prices)-1]/prices[0] - 1
}

// CompoundedReturn is prod(1 + r) - 1 over a return series
func CompoundedReturn(returns []float64) float64 {
	acc := 1.0
	for _, r := range returns {
		acc *= 1 + r
	}
	return acc - 1
}

// AnnualizedFromTotal geometrically annualizes a total return earned over n
// periods: (1 + total)^(periodsPerYear/n) - 1. It is deliberately distinct
// from AnnualizedReturn; the two disagree on the same input.
func AnnualizedFromTotal(total float64, n, periodsPerYear int) float64 {
	if n <= 0 || IsUndefined(total) {
		return math.NaN()
	}
	return math.Pow(1+total, float64(ppy(periodsPerYear))/float64(n)) - 1
}

// ============================================================================
// CORRELATION
// ============================================================================

// Matrix is a labelled square matrix
type Matrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// At returns the value for a pair of labels
func (m *Matrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, l := range m.Labels {
		if l == a {
			i = k
		}
		if l == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

// MarshalJSON renders undefined cells as null
func (m *Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = Nullable(v)
		}
	}
	return json.Marshal(struct {
		Labels []string     `json:"labels"`
		Values [][]*float64 `json:"values"`
	}{m.Labels, values})
}

// CorrelationMatrix computes pairwise Pearson correlations between the
// columns of a return table. The result is symmetric with a unit diagonal.
func CorrelationMatrix(returns *series.Table) *Matrix {
	n := returns.Width()
	m := &Matrix{
		Labels: append([]string(nil), returns.Columns...),
		Values: make([][]float64, n),
	}
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = returns.ColumnValues(j)
		m.Values[j] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			c := math.NaN()
			if len(cols[i]) >= 2 {
				c = stat.Correlation(cols[i], cols[j], nil)
			}
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}
	return m
}

// ============================================================================
// HELPERS
// ============================================================================

// IsUndefined reports whether x is the undefined sentinel (NaN or infinite)
func IsUndefined(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

// Nullable maps undefined values to nil for JSON encoding
func Nullable(x float64) *float64 {
	if IsUndefined(x) {
		return nil
	}
	return &x
}

func ppy(periodsPerYear int) int {
	if periodsPerYear <= 0 {
		return DefaultPeriodsPerYear
	}
	return periodsPerYear
}

// NullableSlice maps every undefined value to nil for JSON encoding
func NullableSlice(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = Nullable(v)
	}
	return out
}
