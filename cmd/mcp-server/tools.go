package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/analysis"
	"github.com/ajitpratap0/quantlens/internal/catalog"
	"github.com/ajitpratap0/quantlens/pkg/performance"
	"github.com/ajitpratap0/quantlens/pkg/portfolio"
	"github.com/ajitpratap0/quantlens/pkg/strategy"
)

const serverName = "quantlens"

// PortfolioArgs are the analyze_portfolio arguments
type PortfolioArgs struct {
	Assets    []string  `json:"assets,omitempty" jsonschema:"catalog labels of the assets, e.g. EUR/USD"`
	SeriesIDs []string  `json:"series_ids,omitempty" jsonschema:"raw FRED series ids, used when assets is empty"`
	Weights   []float64 `json:"weights,omitempty" jsonschema:"target weights, normalized to sum to 1; equal when omitted"`
	Rebalance string    `json:"rebalance,omitempty" jsonschema:"None, Weekly or Monthly; defaults to the configured policy"`
	Start     string    `json:"start,omitempty" jsonschema:"start date YYYY-MM-DD"`
	End       string    `json:"end,omitempty" jsonschema:"end date YYYY-MM-DD"`
}

// AssetArgs are the analyze_asset arguments
type AssetArgs struct {
	Ticker      string  `json:"ticker" jsonschema:"Stooq ticker such as AAPL.US"`
	Period      string  `json:"period,omitempty" jsonschema:"history period: 6mo, 1y, 2y or 5y"`
	ShortWindow int     `json:"short_window,omitempty" jsonschema:"short moving average window"`
	LongWindow  int     `json:"long_window,omitempty" jsonschema:"long moving average window"`
	RSIWindow   int     `json:"rsi_window,omitempty" jsonschema:"RSI window"`
	Horizon     int     `json:"horizon,omitempty" jsonschema:"forecast horizon in business days"`
	Confidence  float64 `json:"confidence,omitempty" jsonschema:"forecast interval confidence in (0,1)"`
}

// SearchArgs are the search_series arguments
type SearchArgs struct {
	Query string `json:"query" jsonschema:"free text FRED search"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// CatalogArgs are the list_catalog arguments
type CatalogArgs struct {
	Group string `json:"group,omitempty" jsonschema:"only list entries of this group"`
}

// PortfolioSummary is the compact analyze_portfolio result
type PortfolioSummary struct {
	Assets          []string                      `json:"assets"`
	Weights         []float64                     `json:"weights"`
	Policy          portfolio.RebalancePolicy     `json:"policy"`
	Metrics         *performance.PortfolioMetrics `json:"metrics"`
	Rebalances      int                           `json:"rebalances"`
	Turnover        float64                       `json:"turnover"`
	TopCorrelations []string                      `json:"top_correlations"`
	Report          string                        `json:"report"`
}

// AssetSummary is the compact analyze_asset result
type AssetSummary struct {
	Ticker    string               `json:"ticker"`
	Period    string               `json:"period"`
	BuyHold   *performance.Summary `json:"buy_hold"`
	Crossover *performance.Summary `json:"crossover"`
	Entries   int                  `json:"entries"`
	Exits     int                  `json:"exits"`
	LatestRSI *float64             `json:"latest_rsi"`
	RSISignal string               `json:"rsi_signal"`
	Forecast  *ForecastSummary     `json:"forecast,omitempty"`
	Report    string               `json:"report"`
}

// ForecastSummary holds the last point of the forecast band
type ForecastSummary struct {
	Horizon    int     `json:"horizon"`
	Confidence float64 `json:"confidence"`
	Date       string  `json:"date"`
	Mean       float64 `json:"mean"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
}

// newServer registers the analysis tools on a new MCP server
func newServer(service *analysis.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	t := &tools{service: service}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_portfolio",
		Description: "Simulate a weighted portfolio of FRED series with periodic rebalancing and report its risk and return metrics",
	}, t.analyzePortfolio)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_asset",
		Description: "Analyze one ticker: buy-and-hold, moving average crossover, RSI and a log-linear price forecast",
	}, t.analyzeAsset)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_series",
		Description: "Search FRED for economic series by keyword",
	}, t.searchSeries)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_catalog",
		Description: "List the curated series catalog with labels, FRED ids and groups",
	}, t.listCatalog)

	return server
}

type tools struct {
	service *analysis.Service
}

func (t *tools) analyzePortfolio(ctx context.Context, req *mcp.CallToolRequest, args PortfolioArgs) (*mcp.CallToolResult, any, error) {
	res, err := t.service.AnalyzePortfolio(ctx, analysis.PortfolioRequest{
		Assets:    args.Assets,
		SeriesIDs: args.SeriesIDs,
		Weights:   args.Weights,
		Rebalance: args.Rebalance,
		Start:     args.Start,
		End:       args.End,
	})
	if err != nil {
		return nil, nil, err
	}

	return jsonResult(&PortfolioSummary{
		Assets:          res.Assets,
		Weights:         res.Weights,
		Policy:          res.Policy,
		Metrics:         res.Metrics,
		Rebalances:      len(res.Rebalances),
		Turnover:        res.Turnover,
		TopCorrelations: res.TopCorrelations,
		Report:          res.Report,
	})
}

func (t *tools) analyzeAsset(ctx context.Context, req *mcp.CallToolRequest, args AssetArgs) (*mcp.CallToolResult, any, error) {
	res, err := t.service.AnalyzeAsset(ctx, analysis.AssetRequest{
		Ticker:      args.Ticker,
		Period:      args.Period,
		ShortWindow: args.ShortWindow,
		LongWindow:  args.LongWindow,
		RSIWindow:   args.RSIWindow,
		Horizon:     args.Horizon,
		Confidence:  args.Confidence,
	})
	if err != nil {
		return nil, nil, err
	}

	out := &AssetSummary{
		Ticker:    res.Ticker,
		Period:    res.Period,
		BuyHold:   res.BuyHold,
		Entries:   len(res.Entries),
		Exits:     len(res.Exits),
		LatestRSI: res.LatestRSI,
		RSISignal: res.RSISignal,
		Forecast:  summarizeForecast(res.Forecast),
		Report:    res.Report,
	}
	if res.Crossover != nil {
		out.Crossover = res.Crossover.Summary
	}
	return jsonResult(out)
}

func (t *tools) searchSeries(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	hits, err := t.service.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(hits)
}

func (t *tools) listCatalog(ctx context.Context, req *mcp.CallToolRequest, args CatalogArgs) (*mcp.CallToolResult, any, error) {
	entries := t.service.Catalog().List()
	if args.Group != "" {
		filtered := make([]catalog.Entry, 0, len(entries))
		for _, e := range entries {
			if strings.EqualFold(e.Group, args.Group) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	return jsonResult(entries)
}

func summarizeForecast(f *strategy.Forecast) *ForecastSummary {
	if f == nil || len(f.Mean) == 0 {
		return nil
	}
	last := len(f.Mean) - 1
	return &ForecastSummary{
		Horizon:    f.Horizon,
		Confidence: f.Confidence,
		Date:       f.Dates[last].Format("2006-01-02"),
		Mean:       f.Mean[last],
		Lower:      f.Lower[last],
		Upper:      f.Upper[last],
	}
}

// jsonResult returns v as a single text content block
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal tool result")
		return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
