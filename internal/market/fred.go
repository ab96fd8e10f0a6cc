package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
	"github.com/ajitpratap0/quantlens/pkg/series"
)

const (
	// ProviderFRED labels FRED requests in logs and metrics
	ProviderFRED = "fred"

	// DefaultFREDBaseURL is the FRED API root
	DefaultFREDBaseURL = "https://api.stlouisfed.org/fred"

	// DefaultSearchLimit is the number of search hits returned when the
	// caller does not ask for a specific count
	DefaultSearchLimit = 15

	// fredMissingValue marks a missing observation
	fredMissingValue = "."

	maxErrorBody = 256
)

// FREDOptions configures a FREDClient
type FREDOptions struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	SearchLimit       int
	Breaker           *BreakerSettings
	HTTPClient        *http.Client
	Logger            *zerolog.Logger // defaults to the global logger
}

// FREDClient fetches observations and searches series on the FRED API
type FREDClient struct {
	apiKey      string
	baseURL     string
	searchLimit int
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	retry       RetryConfig
	log         zerolog.Logger
}

// fredObservations is the observations endpoint response
type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// fredSearch is the series/search endpoint response
type fredSearch struct {
	Series []SeriesInfo `json:"seriess"`
}

// fredError is the body FRED returns with 4xx responses
type fredError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

// NewFREDClient creates a FRED client. An empty API key is accepted here and
// reported on first use.
func NewFREDClient(opts FREDOptions) *FREDClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultFREDBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	retry := DefaultRetryConfig()
	if opts.MaxRetries >= 0 {
		retry.MaxRetries = opts.MaxRetries
	}
	if opts.InitialBackoff > 0 {
		retry.InitialBackoff = opts.InitialBackoff
	}

	breaker := DefaultBreakerSettings()
	if opts.Breaker != nil {
		breaker = *opts.Breaker
	}

	return &FREDClient{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		searchLimit: opts.SearchLimit,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker:     newBreaker(ProviderFRED, breaker, IsRetryable),
		retry:       retry,
		log:         providerLogger(opts.Logger, ProviderFRED),
	}
}

// FetchSeries fetches one FRED series. Missing observations (".") are dropped.
func (c *FREDClient) FetchSeries(ctx context.Context, id string, r DateRange) (*series.Series, error) {
	const op = "market.FREDClient.FetchSeries"

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.Config(op, "series id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("series_id", id)
	if !r.Start.IsZero() {
		params.Set("observation_start", r.Start.Format(DateLayout))
	}
	if !r.End.IsZero() {
		params.Set("observation_end", r.End.Format(DateLayout))
	}

	var resp fredObservations
	if err := c.get(ctx, "observations", "/series/observations", params, &resp); err != nil {
		return nil, c.wrap(op, err, "FRED request failed for %s", id)
	}
	if len(resp.Observations) == 0 {
		return nil, errs.Provider(op, nil, "no observations returned for %s", id)
	}

	type point struct {
		date  time.Time
		value float64
	}
	points := make([]point, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		if obs.Value == fredMissingValue {
			continue
		}
		date, err := time.Parse(DateLayout, obs.Date)
		if err != nil {
			return nil, errs.Provider(op, err, "unexpected observation date %q for %s", obs.Date, id)
		}
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, point{date: date, value: value})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })

	dates := make([]time.Time, 0, len(points))
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if n := len(dates); n > 0 && dates[n-1].Equal(p.date) {
			values[n-1] = p.value
			continue
		}
		dates = append(dates, p.date)
		values = append(values, p.value)
	}

	c.log.Debug().
		Str("series_id", id).
		Int("observations", len(resp.Observations)).
		Int("values", len(values)).
		Msg("Fetched FRED series")

	return series.NewSeries(id, dates, values)
}

// Search finds FRED series by keyword, best match first. A non-positive
// limit uses the configured default.
func (c *FREDClient) Search(ctx context.Context, query string, limit int) ([]SeriesInfo, error) {
	const op = "market.FREDClient.Search"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.Config(op, "search query is required")
	}
	if limit <= 0 {
		limit = c.searchLimit
	}

	params := url.Values{}
	params.Set("search_text", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order_by", "search_rank")
	params.Set("sort_order", "desc")

	var resp fredSearch
	if err := c.get(ctx, "search", "/series/search", params, &resp); err != nil {
		return nil, c.wrap(op, err, "search request failed")
	}

	c.log.Debug().
		Str("query", query).
		Int("results", len(resp.Series)).
		Msg("FRED search completed")

	if resp.Series == nil {
		return []SeriesInfo{}, nil
	}
	return resp.Series, nil
}

// get performs a rate limited, retried and circuit-broken GET and decodes
// the JSON body into out
func (c *FREDClient) get(ctx context.Context, operation, endpoint string, params url.Values, out interface{}) error {
	if c.apiKey == "" {
		return errs.Provider("market.FREDClient", nil, "Missing FRED_API_KEY")
	}

	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	fullURL := c.baseURL + endpoint + "?" + params.Encode()

	start := time.Now()
	err := WithRetry(ctx, ProviderFRED, c.retry, func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, fullURL, out)
		})
		return err
	})
	metrics.RecordProviderRequest(ProviderFRED, operation, float64(time.Since(start).Milliseconds()), err)
	return err
}

func (c *FREDClient) do(ctx context.Context, fullURL string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := truncate(string(body), maxErrorBody)
		var apiErr fredError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// wrap turns a request failure into a provider error unless it already
// carries a kind
func (c *FREDClient) wrap(op string, err error, format string, args ...interface{}) error {
	if errs.Kind(err) != nil {
		return err
	}
	return errs.Provider(op, err, format, args...)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
