// Package portfolio simulates a weighted multi-asset portfolio with periodic
// rebalancing to a target allocation.
package portfolio

import (
	"math"
	"time"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// SeriesName is the name given to simulated portfolio series
const SeriesName = "Portfolio"

// RebalanceEvent records a reset of the weights to the target vector
type RebalanceEvent struct {
	Date time.Time `json:"date"`
	// Turnover is half the L1 distance between the drifted allocation
	// carried into the bucket and the target it was reset to.
	Turnover float64 `json:"turnover"`
}

// Simulation is the output of Simulate
type Simulation struct {
	Policy  RebalancePolicy  `json:"policy"`
	Weights []float64        `json:"weights"`
	Returns *series.Series   `json:"returns"`
	Events  []RebalanceEvent `json:"events"`
	// Drift is the allocation implied by letting the target weights drift
	// through asset returns since the last reset, one row per return row.
	Drift [][]float64 `json:"-"`
}

// TotalTurnover sums the turnover of all rebalance events
func (s *Simulation) TotalTurnover() float64 {
	total := 0.0
	for _, e := range s.Events {
		total += e.Turnover
	}
	return total
}

// Returns applies the target weights to the asset returns and produces one
// portfolio return per row. Weights are reset to the target whenever a row
// starts a new bucket under the policy.
func Returns(returns *series.Table, weights []float64, policy RebalancePolicy) (*series.Series, error) {
	sim, err := Simulate(returns, weights, policy)
	if err != nil {
		return nil, err
	}
	return sim.Returns, nil
}

// Simulate is Returns plus the rebalance events and drift diagnostics
func Simulate(returns *series.Table, weights []float64, policy RebalancePolicy) (*Simulation, error) {
	if !policy.Valid() {
		return nil, errs.Config("portfolio.Simulate", "unknown rebalance policy %d", int(policy))
	}
	if returns == nil {
		returns = &series.Table{}
	}
	if len(weights) != returns.Width() {
		return nil, errs.Config("portfolio.Simulate", "%d weights for %d assets", len(weights), returns.Width())
	}

	target := append([]float64(nil), weights...)
	rows := returns.Rows()

	sim := &Simulation{
		Policy:  policy,
		Weights: target,
		Returns: &series.Series{
			Name:   SeriesName,
			Dates:  make([]time.Time, rows),
			Values: make([]float64, rows),
		},
		Drift: make([][]float64, rows),
	}
	copy(sim.Returns.Dates, returns.Dates)

	current := append([]float64(nil), target...)
	drift := append([]float64(nil), target...)
	var last Bucket

	for i, row := range returns.Values {
		key, err := BucketKey(returns.Dates[i], policy)
		if err != nil {
			return nil, err
		}

		if i == 0 || key != last {
			if i > 0 {
				sim.Events = append(sim.Events, RebalanceEvent{
					Date:     returns.Dates[i],
					Turnover: turnover(drift, target),
				})
			}
			copy(current, target)
			copy(drift, target)
			last = key
		}

		sim.Returns.Values[i] = dot(current, row)
		sim.Drift[i] = applyDrift(drift, row)
	}

	return sim, nil
}

// Value compounds a portfolio return series into a value index
func Value(returns *series.Series, start float64) *series.Series {
	return series.Compound(returns, start)
}

func dot(w, r []float64) float64 {
	sum := 0.0
	for i := range w {
		sum += w[i] * r[i]
	}
	return sum
}

// applyDrift grows each allocation by its asset return and renormalises in
// place, returning a snapshot.
func applyDrift(drift, r []float64) []float64 {
	total := 0.0
	for i := range drift {
		drift[i] *= 1 + r[i]
		total += drift[i]
	}
	if total > 0 && !math.IsInf(total, 0) {
		for i := range drift {
			drift[i] /= total
		}
	}
	return append([]float64(nil), drift...)
}

func turnover(from, to []float64) float64 {
	sum := 0.0
	for i := range from {
		sum += math.Abs(from[i] - to[i])
	}
	return sum / 2
}
