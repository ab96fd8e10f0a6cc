package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

// MaxConcurrentFetches bounds the number of in-flight series requests
const MaxConcurrentFetches = 4

// FetchMulti fetches ids concurrently and aligns them on their common dates,
// ascending. Column j of the result holds ids[j]. The first failure cancels
// the remaining fetches.
func FetchMulti(ctx context.Context, fetcher SeriesFetcher, ids []string, r DateRange) (*series.Table, error) {
	if len(ids) == 0 {
		return nil, errs.Config("market.FetchMulti", "at least one series id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	results := make([]*series.Series, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentFetches)

	for i, id := range ids {
		g.Go(func() error {
			s, err := fetcher.FetchSeries(gctx, id, r)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", id, err)
			}
			if s == nil {
				return errs.Provider("market.FetchMulti", nil, "no observations returned for %s", id)
			}
			named := *s
			named.Name = id
			results[i] = &named
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return series.InnerJoin(results...), nil
}

// LookbackRange returns the range covering the last days calendar days up to
// now, open-ended on the right. Start is truncated to the day so repeated
// calls on the same day share cache keys.
func LookbackRange(days int, now time.Time) DateRange {
	if days <= 0 {
		return DateRange{}
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{Start: day.AddDate(0, 0, -days)}
}
