package strategy

import (
	"encoding/json"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// Forecast defaults
const (
	DefaultHorizon    = 30
	DefaultConfidence = 0.95
)

// Forecast is a log-linear trend projection with a prediction band
type Forecast struct {
	Horizon    int         `json:"horizon"`
	Confidence float64     `json:"confidence"`
	Dates      []time.Time `json:"dates"`
	Mean       []float64   `json:"mean"`
	Lower      []float64   `json:"lower"`
	Upper      []float64   `json:"upper"`
	// Intercept and Slope are in log-price space, per observation
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	// StdErr is the residual standard error of the fit
	StdErr       float64 `json:"std_err"`
	Observations int     `json:"observations"`
}

// DailyGrowth returns the fitted per-period growth rate, exp(slope) - 1
func (f *Forecast) DailyGrowth() float64 {
	return math.Exp(f.Slope) - 1
}

// MarshalJSON renders undefined values as null
func (f *Forecast) MarshalJSON() ([]byte, error) {
	type alias Forecast
	return json.Marshal(struct {
		*alias
		StdErr *float64 `json:"std_err"`
	}{(*alias)(f), performance.Nullable(f.StdErr)})
}

// LinearForecast fits ordinary least squares of ln(price) on the observation
// index and projects horizon business days past the last date. The band is
// the Student-t prediction interval at the given confidence, mapped back to
// price space.
func LinearForecast(prices *series.Series, horizon int, confidence float64) (*Forecast, error) {
	if horizon < 1 {
		return nil, errs.Config("strategy.LinearForecast", "horizon must be positive, got %d", horizon)
	}
	if !(confidence > 0 && confidence < 1) {
		return nil, errs.Config("strategy.LinearForecast", "confidence must be in (0, 1), got %v", confidence)
	}

	var xs, ys []float64
	var dates []time.Time
	for i, p := range prices.Values {
		if performance.IsUndefined(p) || p <= 0 {
			continue
		}
		xs = append(xs, float64(len(xs)))
		ys = append(ys, math.Log(p))
		dates = append(dates, prices.Dates[i])
	}

	n := len(xs)
	if n < 3 {
		return nil, errs.Data("strategy.LinearForecast", "need at least 3 positive prices, got %d", n)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	ssr := 0.0
	for i := range xs {
		r := ys[i] - (alpha + beta*xs[i])
		ssr += r * r
	}
	s := math.Sqrt(ssr / float64(n-2))

	xbar := stat.Mean(xs, nil)
	sxx := 0.0
	for _, x := range xs {
		sxx += (x - xbar) * (x - xbar)
	}

	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	tq := tdist.Quantile(1 - (1-confidence)/2)

	f := &Forecast{
		Horizon:      horizon,
		Confidence:   confidence,
		Dates:        make([]time.Time, horizon),
		Mean:         make([]float64, horizon),
		Lower:        make([]float64, horizon),
		Upper:        make([]float64, horizon),
		Intercept:    alpha,
		Slope:        beta,
		StdErr:       s,
		Observations: n,
	}

	next := dates[n-1]
	for h := 1; h <= horizon; h++ {
		x := float64(n - 1 + h)
		yhat := alpha + beta*x
		half := tq * s * math.Sqrt(1+1/float64(n)+(x-xbar)*(x-xbar)/sxx)

		next = NextBusinessDay(next)
		f.Dates[h-1] = next
		f.Mean[h-1] = math.Exp(yhat)
		f.Lower[h-1] = math.Exp(yhat - half)
		f.Upper[h-1] = math.Exp(yhat + half)
	}

	return f, nil
}

// NextBusinessDay returns the next weekday after t
func NextBusinessDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
