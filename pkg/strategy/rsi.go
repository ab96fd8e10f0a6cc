package strategy

import (
	"math"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// DefaultRSIWindow is the conventional RSI lookback
const DefaultRSIWindow = 14

// RSI thresholds used by RSISignal
const (
	RSIOversold   = 30.0
	RSIOverbought = 70.0
)

// RSI computes the relative strength index using simple rolling means of
// gains and absolute losses. Values are NaN until window price changes are
// available, 100 when there were gains but no losses, and NaN when the
// window saw no movement at all.
func RSI(prices *series.Series, window int) (*series.Series, error) {
	if window < 1 {
		return nil, errs.Config("strategy.RSI", "window must be positive, got %d", window)
	}

	clean := prices.DropNaN()
	n := clean.Len()
	out := &series.Series{
		Name:   "RSI",
		Dates:  clean.Dates,
		Values: make([]float64, n),
	}
	for i := range out.Values {
		out.Values[i] = math.NaN()
	}
	if n < 2 {
		return out, nil
	}

	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		d := clean.Values[i] - clean.Values[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}

	avgGain := rollingMean(gains, window)
	avgLoss := rollingMean(losses, window)

	for i := range gains {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		var v float64
		switch {
		case l == 0 && g == 0:
			v = math.NaN()
		case l == 0:
			v = 100
		default:
			v = 100 - 100/(1+g/l)
		}
		out.Values[i+1] = v
	}

	return out, nil
}

// RSISignal classifies an RSI reading as oversold, overbought or neutral
func RSISignal(value float64) string {
	switch {
	case math.IsNaN(value):
		return "undefined"
	case value < RSIOversold:
		return "oversold"
	case value > RSIOverbought:
		return "overbought"
	default:
		return "neutral"
	}
}
