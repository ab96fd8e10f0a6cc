package strategy

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

func pricesOf(values ...float64) *series.Series {
	dates := make([]time.Time, len(values))
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	for i := range dates {
		dates[i] = d
		d = NextBusinessDay(d)
	}
	return &series.Series{Name: "TEST", Dates: dates, Values: values}
}

// ============================================================================
// ROLLING MEAN
// ============================================================================

func TestRollingMean(t *testing.T) {
	got := rollingMean([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDeltaSlice(t, []float64{2, 3, 4}, got[2:], 1e-12)

	short := rollingMean([]float64{1, 2}, 3)
	assert.True(t, math.IsNaN(short[0]))
	assert.True(t, math.IsNaN(short[1]))
}

// ============================================================================
// CROSSOVER
// ============================================================================

func TestMovingAverageCrossoverValidation(t *testing.T) {
	p := pricesOf(1, 2, 3, 4, 5)

	for _, w := range [][2]int{{0, 5}, {3, 0}, {5, 5}, {6, 5}} {
		_, err := MovingAverageCrossover(p, w[0], w[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrConfiguration), "short=%d long=%d", w[0], w[1])
	}
}

func TestMovingAverageCrossover(t *testing.T) {
	// falls, then rallies: short MA crosses above long MA during the rally
	p := pricesOf(10, 9, 8, 7, 8, 9, 10, 11, 10, 9, 8, 7)

	c, err := MovingAverageCrossover(p, 2, 4)
	require.NoError(t, err)
	n := p.Len()
	require.Len(t, c.Signal, n)
	require.Len(t, c.Equity, n)

	// no signal until the long window fills
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, c.Signal[i])
		assert.True(t, math.IsNaN(c.LongMA[i]))
	}

	assert.Equal(t, 0, c.Position[0])
	assert.True(t, math.IsNaN(c.StrategyReturn[0]))

	for i := 1; i < n; i++ {
		assert.Equal(t, c.Signal[i]-c.Signal[i-1], c.Position[i])
		// uses yesterday's signal: no look-ahead
		assert.InDelta(t, float64(c.Signal[i-1])*c.Returns[i], c.StrategyReturn[i], 1e-15)
	}

	require.NotEmpty(t, c.Entries())
	require.NotEmpty(t, c.Exits())
	assert.True(t, c.Entries()[0].Before(c.Exits()[0]))

	assert.Equal(t, 100.0, c.Equity[0])
	assert.NotNil(t, c.Summary)
	assert.Equal(t, n-1, c.Summary.Periods)
}

func TestMovingAverageCrossoverFlatWhenOut(t *testing.T) {
	// strictly falling prices never trigger a signal
	p := pricesOf(20, 19, 18, 17, 16, 15, 14)
	c, err := MovingAverageCrossover(p, 2, 3)
	require.NoError(t, err)

	for _, s := range c.Signal {
		assert.Equal(t, 0, s)
	}
	for _, v := range c.Equity {
		assert.Equal(t, 100.0, v)
	}
	assert.Equal(t, 0.0, c.Summary.TotalReturn)
	assert.Equal(t, 0.0, c.Summary.MaxDrawdown)
}

func TestCrossoverJSON(t *testing.T) {
	c, err := MovingAverageCrossover(pricesOf(1, 2, 3, 4), 1, 2)
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	longMA := decoded["long_ma"].([]interface{})
	assert.Nil(t, longMA[0])
	assert.InDelta(t, 1.5, longMA[1], 1e-12)
	assert.EqualValues(t, 2, decoded["long_window"])
}

// ============================================================================
// RSI
// ============================================================================

func TestRSIValidation(t *testing.T) {
	_, err := RSI(pricesOf(1, 2, 3), 0)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestRSI(t *testing.T) {
	p := pricesOf(10, 11, 10, 12, 11, 13)
	rsi, err := RSI(p, 2)
	require.NoError(t, err)
	require.Equal(t, p.Len(), rsi.Len())

	assert.True(t, math.IsNaN(rsi.Values[0]))
	assert.True(t, math.IsNaN(rsi.Values[1]))

	// window of changes {+1, -1}: avg gain 0.5, avg loss 0.5
	assert.InDelta(t, 50.0, rsi.Values[2], 1e-9)
	// {-1, +2}: RS = 2
	assert.InDelta(t, 100-100/3.0, rsi.Values[3], 1e-9)

	for _, v := range rsi.Values[2:] {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestRSIEdgeCases(t *testing.T) {
	rising, err := RSI(pricesOf(1, 2, 3, 4), 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rising.Values[3])

	flat, err := RSI(pricesOf(5, 5, 5, 5), 2)
	require.NoError(t, err)
	for _, v := range flat.Values {
		assert.True(t, math.IsNaN(v))
	}

	single, err := RSI(pricesOf(5), 14)
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())
}

func TestRSISignal(t *testing.T) {
	assert.Equal(t, "oversold", RSISignal(25))
	assert.Equal(t, "overbought", RSISignal(75))
	assert.Equal(t, "neutral", RSISignal(50))
	assert.Equal(t, "undefined", RSISignal(math.NaN()))
}

// ============================================================================
// FORECAST
// ============================================================================

func TestLinearForecastValidation(t *testing.T) {
	p := pricesOf(1, 2, 3, 4)

	_, err := LinearForecast(p, 0, 0.95)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = LinearForecast(p, 5, 1)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = LinearForecast(p, 5, 0)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = LinearForecast(pricesOf(1, 2), 5, 0.95)
	assert.True(t, errors.Is(err, errs.ErrData))
}

func TestLinearForecastExponentialTrend(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 * math.Exp(0.01*float64(i))
	}
	f, err := LinearForecast(pricesOf(values...), 5, DefaultConfidence)
	require.NoError(t, err)

	assert.InDelta(t, 0.01, f.Slope, 1e-9)
	assert.InDelta(t, math.Log(100), f.Intercept, 1e-9)
	assert.InDelta(t, math.Exp(0.01)-1, f.DailyGrowth(), 1e-9)
	assert.Equal(t, 20, f.Observations)

	require.Len(t, f.Mean, 5)
	for h := 1; h <= 5; h++ {
		expected := 100 * math.Exp(0.01*float64(19+h))
		assert.InDelta(t, expected, f.Mean[h-1], 1e-6)
		// perfect fit: the band collapses onto the mean
		assert.InDelta(t, f.Mean[h-1], f.Lower[h-1], 1e-6)
		assert.InDelta(t, f.Mean[h-1], f.Upper[h-1], 1e-6)
	}
}

func TestLinearForecastBand(t *testing.T) {
	p := pricesOf(100, 103, 101, 106, 104, 109, 107, 112)
	f, err := LinearForecast(p, 10, 0.9)
	require.NoError(t, err)

	wide, err := LinearForecast(p, 10, 0.99)
	require.NoError(t, err)

	for i := range f.Mean {
		assert.Less(t, f.Lower[i], f.Mean[i])
		assert.Greater(t, f.Upper[i], f.Mean[i])
		assert.Less(t, wide.Lower[i], f.Lower[i])
		assert.Greater(t, wide.Upper[i], f.Upper[i])
		if i > 0 {
			// uncertainty grows with distance from the sample
			assert.Greater(t, f.Upper[i]-f.Lower[i], f.Upper[i-1]-f.Lower[i-1])
		}
	}
}

func TestLinearForecastBusinessDays(t *testing.T) {
	// last observation on a Friday
	p := &series.Series{
		Dates: []time.Time{
			time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		},
		Values: []float64{10, 11, 12},
	}
	f, err := LinearForecast(p, 2, 0.95)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), f.Dates[0])
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), f.Dates[1])
}
