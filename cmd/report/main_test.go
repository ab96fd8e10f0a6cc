package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/report"
)

func setFlags(t *testing.T, k, tk, w string) {
	t.Helper()
	oldKind, oldTickers, oldWeights := *kind, *tickers, *weights
	*kind, *tickers, *weights = k, tk, w
	t.Cleanup(func() { *kind, *tickers, *weights = oldKind, oldTickers, oldWeights })
}

func TestBuildRequests(t *testing.T) {
	defaults := config.ReportsConfig{Ticker: "AAPL.US", Tickers: []string{"AAPL.US", "MSFT.US", "GOOG.US"}}

	setFlags(t, "all", "", "")
	reqs, err := buildRequests(defaults)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, report.Request{Kind: report.KindAsset, Tickers: []string{"AAPL.US"}}, reqs[0])
	assert.Equal(t, defaults.Tickers, reqs[1].Tickers)
	assert.Nil(t, reqs[1].Weights)

	setFlags(t, "Portfolio", "spy.us, qqq.us", "0.6,0.4")
	reqs, err = buildRequests(defaults)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"spy.us", "qqq.us"}, reqs[0].Tickers)
	assert.Equal(t, []float64{0.6, 0.4}, reqs[0].Weights)

	setFlags(t, "asset", "spy.us,qqq.us", "")
	reqs, err = buildRequests(defaults)
	require.NoError(t, err)
	assert.Equal(t, []string{"spy.us"}, reqs[0].Tickers)
}

func TestBuildRequestsErrors(t *testing.T) {
	setFlags(t, "weekly", "", "")
	_, err := buildRequests(config.ReportsConfig{})
	assert.Error(t, err)

	setFlags(t, "portfolio", "", "0.5,abc")
	_, err = buildRequests(config.ReportsConfig{})
	assert.Error(t, err)
}
