package strategy

import (
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// Default crossover windows
const (
	DefaultShortWindow = 20
	DefaultLongWindow  = 50
)

// Crossover is the day-by-day trace of a moving average crossover strategy
type Crossover struct {
	ShortWindow int         `json:"short_window"`
	LongWindow  int         `json:"long_window"`
	Dates       []time.Time `json:"dates"`
	Price       []float64   `json:"price"`
	ShortMA     []float64   `json:"short_ma"`
	LongMA      []float64   `json:"long_ma"`
	// Signal is 1 while the short MA is above the long MA, else 0
	Signal []int `json:"signal"`
	// Position is the change in Signal: +1 entry, -1 exit, 0 otherwise
	Position       []int                `json:"position"`
	Returns        []float64            `json:"returns"`
	StrategyReturn []float64            `json:"strategy_return"`
	Equity         []float64            `json:"equity"`
	Summary        *performance.Summary `json:"summary"`
}

// MarshalJSON renders undefined values as null
func (c *Crossover) MarshalJSON() ([]byte, error) {
	type alias Crossover
	return json.Marshal(struct {
		*alias
		ShortMA        []*float64 `json:"short_ma"`
		LongMA         []*float64 `json:"long_ma"`
		Returns        []*float64 `json:"returns"`
		StrategyReturn []*float64 `json:"strategy_return"`
	}{
		alias:          (*alias)(c),
		ShortMA:        performance.NullableSlice(c.ShortMA),
		LongMA:         performance.NullableSlice(c.LongMA),
		Returns:        performance.NullableSlice(c.Returns),
		StrategyReturn: performance.NullableSlice(c.StrategyReturn),
	})
}

// Entries returns the dates on which the strategy entered the market
func (c *Crossover) Entries() []time.Time {
	return c.transitions(1)
}

// Exits returns the dates on which the strategy left the market
func (c *Crossover) Exits() []time.Time {
	return c.transitions(-1)
}

func (c *Crossover) transitions(dir int) []time.Time {
	var out []time.Time
	for i, p := range c.Position {
		if p == dir {
			out = append(out, c.Dates[i])
		}
	}
	return out
}

// MovingAverageCrossover runs a long-only crossover strategy. The position
// held over day t is the signal observed at the close of day t-1.
func MovingAverageCrossover(prices *series.Series, short, long int) (*Crossover, error) {
	if short < 1 || long < 1 {
		return nil, errs.Config("strategy.MovingAverageCrossover", "windows must be positive (short=%d, long=%d)", short, long)
	}
	if short >= long {
		return nil, errs.Config("strategy.MovingAverageCrossover", "short window %d must be less than long window %d", short, long)
	}

	clean := prices.DropNaN()
	n := clean.Len()

	c := &Crossover{
		ShortWindow:    short,
		LongWindow:     long,
		Dates:          clean.Dates,
		Price:          clean.Values,
		ShortMA:        rollingMean(clean.Values, short),
		LongMA:         rollingMean(clean.Values, long),
		Signal:         make([]int, n),
		Position:       make([]int, n),
		Returns:        series.PctChange(clean).Values,
		StrategyReturn: make([]float64, n),
	}

	for i := 0; i < n; i++ {
		// NaN comparisons are false, so no signal before the long window fills
		if c.ShortMA[i] > c.LongMA[i] {
			c.Signal[i] = 1
		}
		if i == 0 {
			c.StrategyReturn[i] = math.NaN()
			continue
		}
		c.Position[i] = c.Signal[i] - c.Signal[i-1]
		c.StrategyReturn[i] = float64(c.Signal[i-1]) * c.Returns[i]
	}

	strat := &series.Series{Dates: c.Dates, Values: c.StrategyReturn}
	c.Equity = performance.EquityCurve(strat).Values
	c.Summary = performance.StrategySummary(c.StrategyReturn)

	log.Debug().
		Int("observations", n).
		Int("short", short).
		Int("long", long).
		Int("entries", len(c.Entries())).
		Msg("Moving average crossover computed")

	return c, nil
}
