// QuantLens MCP server
// Exposes portfolio and single-asset analysis as MCP tools over stdio
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/analysis"
	"github.com/ajitpratap0/quantlens/internal/catalog"
	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// stdout is reserved for the MCP protocol
	config.InitLoggerWithOutput(cfg.App.LogLevel, "console", os.Stderr)
	log.Info().Msg("QuantLens MCP Server starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := vault.Load(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
	}

	fredLog := config.NewProviderLogger(market.ProviderFRED)
	stooqLog := config.NewProviderLogger(market.ProviderStooq)

	fred := market.NewFREDClient(market.FREDOptions{
		APIKey:            cfg.FRED.APIKey,
		BaseURL:           cfg.FRED.BaseURL,
		Timeout:           cfg.FRED.GetTimeout(),
		RequestsPerSecond: cfg.FRED.RequestsPerSecond,
		Burst:             cfg.FRED.Burst,
		MaxRetries:        cfg.FRED.MaxRetries,
		SearchLimit:       cfg.FRED.SearchLimit,
		Logger:            &fredLog,
	})
	stooq := market.NewStooqClient(market.StooqOptions{
		BaseURL:    cfg.Stooq.BaseURL,
		Timeout:    cfg.Stooq.GetTimeout(),
		MaxRetries: cfg.Stooq.MaxRetries,
		Logger:     &stooqLog,
	})

	cat, err := catalog.New(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build series catalog")
	}

	service := analysis.NewService(cfg.Analysis, analysis.Deps{
		Series:   fred,
		Searcher: fred,
		Prices:   stooq,
		Catalog:  cat,
	})

	server := newServer(service, cfg.App.Version)

	log.Info().Msg("MCP server ready, listening on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("MCP server stopped")
}
