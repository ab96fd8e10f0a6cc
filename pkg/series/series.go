// Package series holds the date-indexed price/return tables and scalar
// series the analytics core works on.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/ajitpratap0/quantlens/pkg/errs"
)

// ============================================================================
// TYPES
// ============================================================================

// Series is a date-indexed scalar series
type Series struct {
	Name   string      `json:"name"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// Table is a date-indexed table with one column per instrument.
// Values is row-major: Values[row][column].
type Table struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// NewSeries builds a series, validating that dates are ascending and unique
func NewSeries(name string, dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, errs.Data("series.NewSeries", "%s: %d dates but %d values", name, len(dates), len(values))
	}
	if err := checkAscending("series.NewSeries", dates); err != nil {
		return nil, err
	}
	return &Series{Name: name, Dates: dates, Values: values}, nil
}

// NewTable builds a table, validating dates and row widths
func NewTable(dates []time.Time, columns []string, values [][]float64) (*Table, error) {
	if len(dates) != len(values) {
		return nil, errs.Data("series.NewTable", "%d dates but %d rows", len(dates), len(values))
	}
	for i, row := range values {
		if len(row) != len(columns) {
			return nil, errs.Data("series.NewTable", "row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	if err := checkAscending("series.NewTable", dates); err != nil {
		return nil, err
	}
	return &Table{Dates: dates, Columns: columns, Values: values}, nil
}

func checkAscending(op string, dates []time.Time) error {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return errs.Data(op, "dates must be ascending and unique (index %d: %s after %s)",
				i, dates[i].Format("2006-01-02"), dates[i-1].Format("2006-01-02"))
		}
	}
	return nil
}

// Len returns the number of observations
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Empty reports whether the series has no observations
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// First returns the first value (NaN when empty)
func (s *Series) First() float64 {
	if s.Empty() {
		return math.NaN()
	}
	return s.Values[0]
}

// Last returns the last value (NaN when empty)
func (s *Series) Last() float64 {
	if s.Empty() {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// DropNaN returns a copy without undefined observations
func (s *Series) DropNaN() *Series {
	out := &Series{Name: s.Name}
	for i, v := range s.Values {
		if isUndefined(v) {
			continue
		}
		out.Dates = append(out.Dates, s.Dates[i])
		out.Values = append(out.Values, v)
	}
	return out
}

// Rows returns the number of rows
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// Width returns the number of columns
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return t.Rows() == 0
}

// Column extracts column j as a series
func (t *Table) Column(j int) *Series {
	out := &Series{
		Name:   t.Columns[j],
		Dates:  make([]time.Time, len(t.Dates)),
		Values: make([]float64, len(t.Dates)),
	}
	copy(out.Dates, t.Dates)
	for i, row := range t.Values {
		out.Values[i] = row[j]
	}
	return out
}

// ColumnValues returns column j as a plain slice
func (t *Table) ColumnValues(j int) []float64 {
	out := make([]float64, len(t.Values))
	for i, row := range t.Values {
		out[i] = row[j]
	}
	return out
}

// DropNaN returns a copy without rows holding any undefined value
func (t *Table) DropNaN() *Table {
	out := &Table{Columns: t.Columns}
	for i, row := range t.Values {
		if rowUndefined(row) {
			continue
		}
		out.Dates = append(out.Dates, t.Dates[i])
		out.Values = append(out.Values, append([]float64(nil), row...))
	}
	return out
}

// Tail returns the last n rows
func (t *Table) Tail(n int) *Table {
	if n >= t.Rows() {
		return t
	}
	start := t.Rows() - n
	return &Table{
		Dates:   t.Dates[start:],
		Columns: t.Columns,
		Values:  t.Values[start:],
	}
}

// WithColumns returns a copy of the table with the columns renamed
func (t *Table) WithColumns(columns []string) (*Table, error) {
	if len(columns) != t.Width() {
		return nil, errs.Config("series.WithColumns", "%d labels for %d columns", len(columns), t.Width())
	}
	return &Table{Dates: t.Dates, Columns: columns, Values: t.Values}, nil
}

// ============================================================================
// ALIGNMENT
// ============================================================================

// InnerJoin aligns several series on their common dates, ascending.
// Observations that are undefined in any series drop the whole date.
func InnerJoin(list ...*Series) *Table {
	table := &Table{Columns: make([]string, len(list))}
	if len(list) == 0 {
		return table
	}

	counts := make(map[int64]int)
	byDate := make([]map[int64]float64, len(list))
	dates := make(map[int64]time.Time)

	for j, s := range list {
		table.Columns[j] = s.Name
		byDate[j] = make(map[int64]float64, s.Len())
		for i, d := range s.Dates {
			v := s.Values[i]
			if isUndefined(v) {
				continue
			}
			key := d.Unix()
			if _, seen := byDate[j][key]; !seen {
				counts[key]++
			}
			byDate[j][key] = v
			dates[key] = d
		}
	}

	keys := make([]int64, 0, len(counts))
	for key, n := range counts {
		if n == len(list) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	for _, key := range keys {
		row := make([]float64, len(list))
		for j := range list {
			row[j] = byDate[j][key]
		}
		table.Dates = append(table.Dates, dates[key])
		table.Values = append(table.Values, row)
	}

	return table
}

func isUndefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func rowUndefined(row []float64) bool {
	for _, v := range row {
		if isUndefined(v) {
			return true
		}
	}
	return false
}
