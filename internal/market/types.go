// Package market fetches price histories from upstream data providers (FRED
// for macro and market series, Stooq for single-ticker OHLCV) and caches them
// in Redis.
package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// DateLayout is the calendar date format used by the providers and cache keys
const DateLayout = "2006-01-02"

// DateRange bounds a fetch. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects ranges whose start is not before their end
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && !r.Start.Before(r.End) {
		return errs.Config("market.DateRange", "start date %s must be before end date %s",
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// String renders the range as "<start>:<end>" with empty open sides
func (r DateRange) String() string {
	return formatDate(r.Start) + ":" + formatDate(r.End)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// SeriesInfo describes a series returned by a provider search
type SeriesInfo struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Frequency          string `json:"frequency"`
	Units              string `json:"units"`
	SeasonalAdjustment string `json:"seasonal_adjustment,omitempty"`
	ObservationStart   string `json:"observation_start,omitempty"`
	ObservationEnd     string `json:"observation_end,omitempty"`
	Popularity         int    `json:"popularity"`
}

// Candle is one daily OHLCV bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SeriesFetcher returns a single dated price series
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, id string, r DateRange) (*series.Series, error)
}

// Searcher finds series by keyword
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SeriesInfo, error)
}

// OHLCVSource returns daily bars for a ticker over a named lookback period
type OHLCVSource interface {
	FetchOHLCV(ctx context.Context, ticker, period string) ([]Candle, error)
}

// CloseSeries extracts the close column of candles as a series named name
func CloseSeries(name string, candles []Candle) *series.Series {
	s := &series.Series{
		Name:   name,
		Dates:  make([]time.Time, len(candles)),
		Values: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Dates[i] = c.Date
		s.Values[i] = c.Close
	}
	return s
}

// OpenSeries extracts the open column of candles as a series named name
func OpenSeries(name string, candles []Candle) *series.Series {
	s := &series.Series{
		Name:   name,
		Dates:  make([]time.Time, len(candles)),
		Values: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Dates[i] = c.Date
		s.Values[i] = c.Open
	}
	return s
}

// providerLogger returns l, or the global logger tagged with the provider
func providerLogger(l *zerolog.Logger, provider string) zerolog.Logger {
	if l != nil {
		return *l
	}
	return log.With().Str("provider", provider).Logger()
}
