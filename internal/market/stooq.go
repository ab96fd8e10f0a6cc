package market

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
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

	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/pkg/errs"
)

const (
	// ProviderStooq labels Stooq requests in logs and metrics
	ProviderStooq = "stooq"

	// DefaultStooqBaseURL is the Stooq CSV download endpoint
	DefaultStooqBaseURL = "https://stooq.com/q/d/l/"

	// DefaultPeriod is used for unknown period names
	DefaultPeriod = "1y"
)

// PeriodDays maps lookback period names to calendar days
var PeriodDays = map[string]int{
	"6mo": 183,
	"1y":  365,
	"2y":  730,
	"5y":  1825,
}

// LookbackDays returns the calendar days for period, 365 for unknown names
func LookbackDays(period string) int {
	if days, ok := PeriodDays[period]; ok {
		return days
	}
	return PeriodDays[DefaultPeriod]
}

// StooqOptions configures a StooqClient
type StooqOptions struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	Breaker        *BreakerSettings
	HTTPClient     *http.Client
	Logger         *zerolog.Logger // defaults to the global logger
}

// StooqClient downloads daily OHLCV bars as CSV from Stooq
type StooqClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retry      RetryConfig
	log        zerolog.Logger
}

// NewStooqClient creates a Stooq client
func NewStooqClient(opts StooqOptions) *StooqClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultStooqBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
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

	return &StooqClient{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		breaker:    newBreaker(ProviderStooq, breaker, IsRetryable),
		retry:      retry,
		log:        providerLogger(opts.Logger, ProviderStooq),
	}
}

// NormalizeTicker trims and lower-cases a Stooq ticker such as "AAPL.US"
func NormalizeTicker(ticker string) string {
	return strings.ToLower(strings.TrimSpace(ticker))
}

// FetchOHLCV returns daily bars for ticker, ascending, limited to period
// before the last observation. An unknown ticker yields no bars and no error.
func (c *StooqClient) FetchOHLCV(ctx context.Context, ticker, period string) ([]Candle, error) {
	const op = "market.StooqClient.FetchOHLCV"

	t := NormalizeTicker(ticker)
	if t == "" {
		return nil, errs.Config(op, "ticker is required")
	}

	params := url.Values{}
	params.Set("s", t)
	params.Set("i", "d")
	fullURL := c.baseURL + "?" + params.Encode()

	var body []byte
	start := time.Now()
	err := WithRetry(ctx, ProviderStooq, c.retry, func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.download(ctx, fullURL)
		})
		if err != nil {
			return err
		}
		body = out.([]byte)
		return nil
	})
	metrics.RecordProviderRequest(ProviderStooq, "ohlcv", float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return nil, errs.Provider(op, err, "price download failed for %s", t)
	}

	candles, err := ParseOHLCV(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Provider(op, err, "unexpected CSV for %s", t)
	}
	candles = FilterPeriod(candles, period)

	c.log.Debug().
		Str("ticker", t).
		Str("period", period).
		Int("bars", len(candles)).
		Msg("Fetched Stooq prices")

	return candles, nil
}

func (c *StooqClient) download(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}
	return body, nil
}

// ParseOHLCV parses a Stooq daily CSV. Bodies without a Date column (Stooq
// answers "No data" for unknown tickers) yield no bars; a Close column is
// required. Rows with a missing or unparseable field are dropped and the
// result is sorted by date.
func ParseOHLCV(r io.Reader) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Candle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	dateCol, ok := cols["Date"]
	if !ok {
		return []Candle{}, nil
	}
	if _, ok := cols["Close"]; !ok {
		return nil, fmt.Errorf("missing Close column")
	}

	candles := make([]Candle, 0, 256)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		candle, ok := parseRow(record, dateCol, cols)
		if ok {
			candles = append(candles, candle)
		}
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	return candles, nil
}

func parseRow(record []string, dateCol int, cols map[string]int) (Candle, bool) {
	if dateCol >= len(record) {
		return Candle{}, false
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(record[dateCol]))
	if err != nil {
		return Candle{}, false
	}

	candle := Candle{Date: date}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"Open", &candle.Open},
		{"High", &candle.High},
		{"Low", &candle.Low},
		{"Close", &candle.Close},
		{"Volume", &candle.Volume},
	}
	for _, f := range fields {
		i, present := cols[f.name]
		if !present {
			continue
		}
		if i >= len(record) {
			return Candle{}, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return Candle{}, false
		}
		*f.dst = v
	}
	return candle, true
}

// FilterPeriod keeps the bars within period calendar days of the last bar
func FilterPeriod(candles []Candle, period string) []Candle {
	if len(candles) == 0 {
		return candles
	}
	cutoff := candles[len(candles)-1].Date.AddDate(0, 0, -LookbackDays(period))
	i := sort.Search(len(candles), func(i int) bool { return !candles[i].Date.Before(cutoff) })
	return candles[i:]
}
