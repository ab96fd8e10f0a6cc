// Package strategy implements single-asset technical strategies: a moving
// average crossover, RSI and a log-linear trend forecast.
package strategy

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// rollingMean returns the simple moving average of values, index aligned with
// the input. Positions before the window fills are NaN.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(values) < window {
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	means := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	// the indicator emits one value per full window
	offset := len(values) - len(means)
	for i, m := range means {
		out[offset+i] = m
	}
	return out
}
