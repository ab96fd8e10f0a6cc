package series

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-day format used when rendering series
const DateLayout = "2006-01-02"

// MarshalJSON renders dates as calendar days and undefined values as null
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string     `json:"name"`
		Dates  []string   `json:"dates"`
		Values []*float64 `json:"values"`
	}{
		Name:   s.Name,
		Dates:  formatDates(s.Dates),
		Values: nullable(s.Values),
	})
}

// MarshalJSON renders dates as calendar days and undefined values as null
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][]*float64, len(t.Values))
	for i, row := range t.Values {
		rows[i] = nullable(row)
	}
	return json.Marshal(struct {
		Dates   []string     `json:"dates"`
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{
		Dates:   formatDates(t.Dates),
		Columns: t.Columns,
		Values:  rows,
	})
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(DateLayout)
	}
	return out
}

func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if isUndefined(values[i]) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}
