package portfolio

import "math"

// NormalizeWeights turns raw allocation inputs into a weight vector on the
// probability simplex. Negative and non-finite inputs are clamped to zero;
// if nothing positive remains every instrument gets 1/N.
func NormalizeWeights(raw []float64) []float64 {
	n := len(raw)
	w := make([]float64, n)
	if n == 0 {
		return w
	}

	sum := 0.0
	for i, v := range raw {
		if v > 0 && !math.IsInf(v, 1) {
			w[i] = v
			sum += v
		}
	}

	if sum == 0 {
		for i := range w {
			w[i] = 1.0 / float64(n)
		}
		return w
	}

	for i := range w {
		w[i] /= sum
	}
	return w
}

// EqualWeights returns n equal weights
func EqualWeights(n int) []float64 {
	return NormalizeWeights(make([]float64, n))
}
