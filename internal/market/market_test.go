package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// FAKES
// ============================================================================

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string]*series.Series
	fail  map[string]error
	calls int
}

func (f *fakeFetcher) FetchSeries(ctx context.Context, id string, r DateRange) (*series.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	s, ok := f.data[id]
	if !ok {
		return nil, errs.Provider("fake", nil, "no observations returned for %s", id)
	}
	return s, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setupMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// ============================================================================
// DATE RANGES
// ============================================================================

func TestDateRange(t *testing.T) {
	assert.NoError(t, DateRange{}.Validate())
	assert.NoError(t, DateRange{Start: day(1)}.Validate())
	assert.NoError(t, DateRange{Start: day(1), End: day(2)}.Validate())

	err := DateRange{Start: day(2), End: day(2)}.Validate()
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	assert.Equal(t, "2024-01-01:2024-01-31", DateRange{Start: day(1), End: day(31)}.String())
	assert.Equal(t, "2024-01-01:", DateRange{Start: day(1)}.String())
}

func TestLookbackRange(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)
	r := LookbackRange(365, now)
	assert.True(t, r.Start.Equal(time.Date(2023, time.March, 11, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.End.IsZero())

	assert.Equal(t, DateRange{}, LookbackRange(0, now))
}

// ============================================================================
// RETRY
// ============================================================================

func TestRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.InitialBackoff)
	assert.Equal(t, 5*time.Second, config.MaxBackoff)
	assert.Equal(t, 2.0, config.BackoffFactor)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"server error", &StatusError{StatusCode: 503}, true},
		{"bad request", &StatusError{StatusCode: 400, Body: "Bad Request"}, false},
		{"wrapped server error", fmt.Errorf("fetch: %w", &StatusError{StatusCode: 502}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"missing key", errs.Provider("op", nil, "Missing FRED_API_KEY"), false},
		{"breaker open", gobreaker.ErrOpenState, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	t.Run("succeeds after retryable failures", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), "test", config, func() error {
			attempts++
			if attempts < 3 {
				return &StatusError{StatusCode: 503}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("aborts on non-retryable error", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), "test", config, func() error {
			attempts++
			return &StatusError{StatusCode: 404}
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), "test", config, func() error {
			attempts++
			return errors.New("timeout")
		})
		require.Error(t, err)
		assert.Equal(t, 4, attempts)
		assert.Contains(t, err.Error(), "operation failed after 4 attempts")
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, "test", config, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// ============================================================================
// FRED
// ============================================================================

func newTestFREDClient(t *testing.T, handler http.HandlerFunc, apiKey string) *FREDClient {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return NewFREDClient(FREDOptions{
		APIKey:            apiKey,
		BaseURL:           ts.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
	})
}

func TestFREDFetchSeries(t *testing.T) {
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "DEXUSEU", q.Get("series_id"))
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("file_type"))
		assert.Equal(t, "2024-01-01", q.Get("observation_start"))
		assert.Equal(t, "2024-01-31", q.Get("observation_end"))

		_, _ = w.Write([]byte(`{"observations":[
			{"date":"2024-01-02","value":"1.0956"},
			{"date":"2024-01-03","value":"."},
			{"date":"2024-01-04","value":"1.0945"},
			{"date":"2024-01-05","value":"1.0921"}
		]}`))
	}, "test-key")

	s, err := client.FetchSeries(context.Background(), " DEXUSEU ", DateRange{Start: day(1), End: day(31)})
	require.NoError(t, err)

	assert.Equal(t, "DEXUSEU", s.Name)
	assert.Equal(t, []float64{1.0956, 1.0945, 1.0921}, s.Values)
	require.Len(t, s.Dates, 3)
	assert.True(t, s.Dates[0].Equal(day(2)))
	assert.True(t, s.Dates[1].Equal(day(4)))
}

func TestFREDMissingAPIKey(t *testing.T) {
	var calls atomic.Int32
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, "")

	_, err := client.FetchSeries(context.Background(), "SP500", DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "Missing FRED_API_KEY")

	_, err = client.Search(context.Background(), "gold", 0)
	assert.Contains(t, err.Error(), "Missing FRED_API_KEY")
	assert.Equal(t, int32(0), calls.Load())
}

func TestFREDNoObservations(t *testing.T) {
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[]}`))
	}, "test-key")

	_, err := client.FetchSeries(context.Background(), "NOPE", DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "no observations returned for NOPE")
}

func TestFREDRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"observations":[{"date":"2024-01-02","value":"4.1"}]}`))
	}, "test-key")

	s, err := client.FetchSeries(context.Background(), "DGS10", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []float64{4.1}, s.Values)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFREDClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`))
	}, "test-key")

	_, err := client.FetchSeries(context.Background(), "BOGUS", DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "The series does not exist")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFREDCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewFREDClient(FREDOptions{
		APIKey:            "test-key",
		BaseURL:           ts.URL,
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxRetries:        0,
		Breaker: &BreakerSettings{
			MinRequests:     2,
			FailureRatio:    0.5,
			OpenTimeout:     time.Minute,
			HalfOpenMaxReqs: 1,
			CountInterval:   time.Minute,
		},
	})

	for i := 0; i < 2; i++ {
		_, err := client.FetchSeries(context.Background(), "SP500", DateRange{})
		require.Error(t, err)
	}

	_, err := client.FetchSeries(context.Background(), "SP500", DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFREDSearch(t *testing.T) {
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "gold price", q.Get("search_text"))
		assert.Equal(t, "15", q.Get("limit"))
		assert.Equal(t, "search_rank", q.Get("order_by"))
		assert.Equal(t, "desc", q.Get("sort_order"))

		_, _ = w.Write([]byte(`{"seriess":[
			{"id":"GOLDAMGBD228NLBM","title":"Gold Fixing Price","frequency":"Daily","units":"U.S. Dollars per Troy Ounce","popularity":60},
			{"id":"GOLDPMGBD228NLBM","title":"Gold Fixing Price 3:00 P.M.","frequency":"Daily","units":"U.S. Dollars per Troy Ounce","popularity":40}
		]}`))
	}, "test-key")

	results, err := client.Search(context.Background(), "gold price", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "GOLDAMGBD228NLBM", results[0].ID)
	assert.Equal(t, "Daily", results[0].Frequency)
	assert.Equal(t, 60, results[0].Popularity)

	_, err = client.Search(context.Background(), "   ", 0)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestFREDSearchEmpty(t *testing.T) {
	client := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{}`))
	}, "test-key")

	results, err := client.Search(context.Background(), "zzzz", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

// ============================================================================
// STOOQ
// ============================================================================

const stooqCSV = `Date,Open,High,Low,Close,Volume
2024-01-03,11,12,10,11.5,1000
2024-01-02,10,11,9,10.5,900
2024-01-04,,13,11,12,1100
2023-01-01,5,6,4,5.5,100
`

func TestParseOHLCV(t *testing.T) {
	candles, err := ParseOHLCV(strings.NewReader(stooqCSV))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.True(t, candles[0].Date.Equal(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, candles[1].Date.Equal(day(2)))
	assert.Equal(t, Candle{Date: candles[2].Date, Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 1000}, candles[2])

	none, err := ParseOHLCV(strings.NewReader("No data"))
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := ParseOHLCV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseOHLCV(strings.NewReader("Date,Open\n2024-01-02,1\n"))
	assert.Error(t, err)
}

func TestFilterPeriod(t *testing.T) {
	candles, err := ParseOHLCV(strings.NewReader(stooqCSV))
	require.NoError(t, err)

	assert.Len(t, FilterPeriod(candles, "1y"), 2)
	assert.Len(t, FilterPeriod(candles, "2y"), 3)
	assert.Len(t, FilterPeriod(candles, "6mo"), 2)
	assert.Len(t, FilterPeriod(candles, "bogus"), 2)
	assert.Empty(t, FilterPeriod(nil, "1y"))

	assert.Equal(t, 365, LookbackDays("bogus"))
	assert.Equal(t, 1825, LookbackDays("5y"))
}

func TestStooqFetchOHLCV(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/q/d/l/", r.URL.Path)
		assert.Equal(t, "d", r.URL.Query().Get("i"))
		if r.URL.Query().Get("s") != "aapl.us" {
			_, _ = w.Write([]byte("No data"))
			return
		}
		_, _ = w.Write([]byte(stooqCSV))
	}))
	defer ts.Close()

	client := NewStooqClient(StooqOptions{BaseURL: ts.URL + "/q/d/l/", MaxRetries: 1, InitialBackoff: time.Millisecond})

	candles, err := client.FetchOHLCV(context.Background(), "  AAPL.US ", "1y")
	require.NoError(t, err)
	require.Len(t, candles, 2)

	closes := CloseSeries("AAPL.US", candles)
	assert.Equal(t, "AAPL.US", closes.Name)
	assert.Equal(t, []float64{10.5, 11.5}, closes.Values)
	assert.Equal(t, []float64{10, 11}, OpenSeries("AAPL.US", candles).Values)

	unknown, err := client.FetchOHLCV(context.Background(), "zzzz.us", "1y")
	require.NoError(t, err)
	assert.Empty(t, unknown)

	_, err = client.FetchOHLCV(context.Background(), " ", "1y")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestStooqServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewStooqClient(StooqOptions{BaseURL: ts.URL, MaxRetries: 1, InitialBackoff: time.Millisecond})
	_, err := client.FetchOHLCV(context.Background(), "msft.us", "1y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Equal(t, int32(2), calls.Load())
}

// ============================================================================
// FETCH MULTI
// ============================================================================

func TestFetchMulti(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]*series.Series{
		"A": {Name: "x", Dates: []time.Time{day(1), day(2), day(3), day(4)}, Values: []float64{1, 2, 3, 4}},
		"B": {Name: "y", Dates: []time.Time{day(2), day(3), day(4), day(5)}, Values: []float64{20, 30, 40, 50}},
		"C": {Name: "z", Dates: []time.Time{day(2), day(3), day(4)}, Values: []float64{200, 300, 400}},
	}}

	table, err := FetchMulti(context.Background(), fetcher, []string{"A", "B", "C"}, DateRange{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, table.Columns)
	require.Equal(t, 3, table.Rows())
	assert.True(t, table.Dates[0].Equal(day(2)))
	assert.Equal(t, []float64{2, 20, 200}, table.Values[0])
	assert.Equal(t, []float64{4, 40, 400}, table.Values[2])

	// The fetched series keep their own names
	assert.Equal(t, "x", fetcher.data["A"].Name)
}

func TestFetchMultiErrors(t *testing.T) {
	fetcher := &fakeFetcher{
		data: map[string]*series.Series{"A": {Name: "A", Dates: []time.Time{day(1)}, Values: []float64{1}}},
		fail: map[string]error{"B": errs.Provider("fake", nil, "boom")},
	}

	_, err := FetchMulti(context.Background(), fetcher, []string{"A", "B"}, DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "fetch B")

	_, err = FetchMulti(context.Background(), fetcher, nil, DateRange{})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	// a fetcher answering (nil, nil) is a provider failure
	fetcher.data["C"] = nil
	_, err = FetchMulti(context.Background(), fetcher, []string{"A", "C"}, DateRange{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Contains(t, err.Error(), "no observations returned for C")

	_, err = FetchMulti(context.Background(), fetcher, []string{"A"}, DateRange{Start: day(5), End: day(1)})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

// ============================================================================
// CACHE
// ============================================================================

func TestNewSeriesCache(t *testing.T) {
	assert.Nil(t, NewSeriesCache(nil, time.Minute))

	cache := NewSeriesCache(&redis.Client{}, 0)
	require.NotNil(t, cache)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)

	var nilCache *SeriesCache
	s, ok := nilCache.Get(context.Background(), "A", DateRange{})
	assert.Nil(t, s)
	assert.False(t, ok)
	assert.Error(t, nilCache.Set(context.Background(), "A", DateRange{}, &series.Series{}))
	assert.Error(t, nilCache.Health(context.Background()))
}

func TestSeriesCacheGetSet(t *testing.T) {
	client, mr := setupMiniRedis(t)
	cache := NewSeriesCache(client, time.Minute)
	ctx := context.Background()
	r := DateRange{Start: day(1)}

	_, ok := cache.Get(ctx, "DGS10", r)
	assert.False(t, ok)

	want := &series.Series{Name: "DGS10", Dates: []time.Time{day(2), day(3)}, Values: []float64{4.1, 4.2}}
	require.NoError(t, cache.Set(ctx, "DGS10", r, want))
	assert.True(t, mr.Exists("quantlens:series:DGS10:2024-01-01:"))
	assert.Equal(t, time.Minute, mr.TTL("quantlens:series:DGS10:2024-01-01:"))

	got, ok := cache.Get(ctx, "DGS10", r)
	require.True(t, ok)
	assert.Equal(t, "DGS10", got.Name)
	assert.Equal(t, want.Values, got.Values)
	require.Len(t, got.Dates, 2)
	assert.True(t, got.Dates[1].Equal(day(3)))

	// A different range is a different key
	_, ok = cache.Get(ctx, "DGS10", DateRange{Start: day(2)})
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, "DGS10", r)
	assert.False(t, ok)
}

func TestSeriesCacheCorruptEntry(t *testing.T) {
	client, mr := setupMiniRedis(t)
	cache := NewSeriesCache(client, time.Minute)

	require.NoError(t, mr.Set("quantlens:series:A::", "{not json"))
	_, ok := cache.Get(context.Background(), "A", DateRange{})
	assert.False(t, ok)
}

func TestSeriesCacheInvalidateAndClear(t *testing.T) {
	client, mr := setupMiniRedis(t)
	cache := NewSeriesCache(client, time.Minute)
	ctx := context.Background()
	s := &series.Series{Name: "x", Dates: []time.Time{day(2)}, Values: []float64{1}}

	require.NoError(t, cache.Set(ctx, "A", DateRange{Start: day(1)}, s))
	require.NoError(t, cache.Set(ctx, "A", DateRange{Start: day(2)}, s))
	require.NoError(t, cache.Set(ctx, "B", DateRange{}, s))
	require.NoError(t, mr.Set("other:key", "keep"))

	n, err := cache.Invalidate(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("quantlens:series:B::"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, mr.Exists("quantlens:series:B::"))
	assert.True(t, mr.Exists("other:key"))

	assert.NoError(t, cache.Health(ctx))
}

func TestCachedFetcher(t *testing.T) {
	client, _ := setupMiniRedis(t)
	fetcher := &fakeFetcher{data: map[string]*series.Series{
		"A": {Name: "A", Dates: []time.Time{day(2), day(3)}, Values: []float64{1, 2}},
	}}
	cached := NewCachedFetcher(fetcher, NewSeriesCache(client, time.Minute))
	ctx := context.Background()

	first, err := cached.FetchSeries(ctx, "A", DateRange{})
	require.NoError(t, err)
	second, err := cached.FetchSeries(ctx, "A", DateRange{})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, first.Values, second.Values)

	_, err = cached.Refresh(ctx, "A", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())

	_, err = cached.FetchSeries(ctx, "missing", DateRange{})
	assert.True(t, errors.Is(err, errs.ErrProvider))
}

func TestCachedFetcherDegradesWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	fetcher := &fakeFetcher{data: map[string]*series.Series{
		"A": {Name: "A", Dates: []time.Time{day(2)}, Values: []float64{1}},
	}}
	cached := NewCachedFetcher(fetcher, NewSeriesCache(client, time.Minute))

	for i := 0; i < 2; i++ {
		s, err := cached.FetchSeries(context.Background(), "A", DateRange{})
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, s.Values)
	}
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCachedFetcherWithoutCache(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]*series.Series{
		"A": {Name: "A", Dates: []time.Time{day(2)}, Values: []float64{1}},
	}}
	cached := NewCachedFetcher(fetcher, nil)
	assert.Nil(t, cached.Cache())

	_, err := cached.FetchSeries(context.Background(), "A", DateRange{})
	require.NoError(t, err)
	_, err = cached.FetchSeries(context.Background(), "A", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

// ============================================================================
// WARMER
// ============================================================================

func TestWarmerWarmAll(t *testing.T) {
	client, mr := setupMiniRedis(t)
	fetcher := &fakeFetcher{
		data: map[string]*series.Series{
			"A": {Name: "A", Dates: []time.Time{day(2)}, Values: []float64{1}},
			"B": {Name: "B", Dates: []time.Time{day(2)}, Values: []float64{2}},
		},
		fail: map[string]error{"C": errors.New("upstream down")},
	}
	cached := NewCachedFetcher(fetcher, NewSeriesCache(client, time.Minute))

	w := NewWarmer(cached, []string{"A", "B", "C"}, 30, time.Hour)
	w.now = func() time.Time { return time.Date(2024, time.February, 15, 9, 0, 0, 0, time.UTC) }

	assert.Equal(t, 2, w.warmAll(context.Background()))
	assert.True(t, mr.Exists("quantlens:series:A:2024-01-16:"))
	assert.True(t, mr.Exists("quantlens:series:B:2024-01-16:"))
	assert.False(t, mr.Exists("quantlens:series:C:2024-01-16:"))
}

func TestWarmerStartStop(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]*series.Series{
		"A": {Name: "A", Dates: []time.Time{day(2)}, Values: []float64{1}},
	}}
	w := NewWarmer(NewCachedFetcher(fetcher, nil), []string{"A"}, 30, time.Hour)

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("warmer did not stop")
	}
}
