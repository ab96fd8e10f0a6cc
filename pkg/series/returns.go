package series

import (
	"math"
	"time"
)

// ComputeReturns converts a table of price levels into periodic fractional
// returns, price[t]/price[t-1] - 1. The first row and every row holding an
// undefined ratio are dropped. Fewer than two rows yields an empty table,
// which callers treat as insufficient data.
func ComputeReturns(prices *Table) *Table {
	out := &Table{}
	if prices == nil {
		return out
	}
	out.Columns = prices.Columns
	if prices.Rows() < 2 {
		return out
	}

	for i := 1; i < prices.Rows(); i++ {
		prev, cur := prices.Values[i-1], prices.Values[i]
		row := make([]float64, len(cur))
		for j := range cur {
			row[j] = ratio(cur[j], prev[j])
		}
		if rowUndefined(row) {
			continue
		}
		out.Dates = append(out.Dates, prices.Dates[i])
		out.Values = append(out.Values, row)
	}

	return out
}

// PctChange returns the index-aligned percentage change of a series.
// The first value is NaN; so is any value whose prior observation is zero
// or undefined.
func PctChange(s *Series) *Series {
	out := &Series{
		Name:   s.Name,
		Dates:  make([]time.Time, s.Len()),
		Values: make([]float64, s.Len()),
	}
	copy(out.Dates, s.Dates)
	for i := range s.Values {
		if i == 0 {
			out.Values[i] = math.NaN()
			continue
		}
		r := ratio(s.Values[i], s.Values[i-1])
		if math.IsInf(r, 0) {
			r = math.NaN()
		}
		out.Values[i] = r
	}
	return out
}

// Compound turns a return series into a cumulative value series starting
// from start: start * prod(1 + r). Undefined returns count as zero so that
// gaps do not propagate downstream.
func Compound(returns *Series, start float64) *Series {
	out := &Series{
		Name:   returns.Name,
		Dates:  make([]time.Time, returns.Len()),
		Values: make([]float64, returns.Len()),
	}
	copy(out.Dates, returns.Dates)

	acc := 1.0
	for i, r := range returns.Values {
		if isUndefined(r) {
			r = 0
		}
		acc *= 1 + r
		out.Values[i] = acc * start
	}
	return out
}

// CompoundTable compounds every column of a return table from a start of 1
func CompoundTable(returns *Table) *Table {
	out := &Table{
		Dates:   returns.Dates,
		Columns: returns.Columns,
		Values:  make([][]float64, returns.Rows()),
	}
	acc := make([]float64, returns.Width())
	for j := range acc {
		acc[j] = 1
	}
	for i, row := range returns.Values {
		values := make([]float64, len(row))
		for j, r := range row {
			if isUndefined(r) {
				r = 0
			}
			acc[j] *= 1 + r
			values[j] = acc[j]
		}
		out.Values[i] = values
	}
	return out
}

func ratio(cur, prev float64) float64 {
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return math.NaN()
	}
	if prev == 0 {
		return math.Inf(1)
	}
	return cur/prev - 1
}
