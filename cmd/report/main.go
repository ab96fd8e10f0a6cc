// Daily report CLI
// Generates the single-asset and portfolio reports and delivers them to CSV,
// NATS and PostgreSQL
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/db"
	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/report"
	"github.com/ajitpratap0/quantlens/internal/vault"
)

const kindAll = "all"

var (
	configPath = flag.String("config", "", "Path to config file")
	kind       = flag.String("kind", report.KindAsset, "Report kind (asset, portfolio, all)")
	tickers    = flag.String("tickers", "", "Comma-separated Stooq tickers (default from config)")
	weights    = flag.String("weights", "", "Comma-separated portfolio weights (default equal)")
	period     = flag.String("period", report.DefaultPeriod, "Price history period")
	outDir     = flag.String("out", "", "Output directory (default from config)")
	publish    = flag.Bool("publish", false, "Publish reports on NATS")
	store      = flag.Bool("store", false, "Store reports in PostgreSQL")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.InitLoggerWithOutput(cfg.App.LogLevel, "console", os.Stderr)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	requests, err := buildRequests(cfg.Reports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := vault.Load(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
	}

	dir := *outDir
	if dir == "" {
		dir = cfg.Reports.OutputDir
	}

	stooqLog := config.NewProviderLogger(market.ProviderStooq)
	stooq := market.NewStooqClient(market.StooqOptions{
		BaseURL:    cfg.Stooq.BaseURL,
		Timeout:    cfg.Stooq.GetTimeout(),
		MaxRetries: cfg.Stooq.MaxRetries,
		Logger:     &stooqLog,
	})
	job := &report.Job{
		Generator: report.NewGenerator(stooq, *period),
		Writer:    report.NewWriter(dir),
	}

	if *publish || cfg.Reports.Publish {
		publisher, err := report.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect report publisher")
		}
		defer publisher.Close()
		job.Publisher = publisher
	}

	if *store {
		database, err := db.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		job.Store = db.NewReportRepository(database.Pool())
	}

	failed := false
	for _, req := range requests {
		res, err := job.Run(ctx, req)
		if err != nil {
			failed = true
			log.Error().Err(err).Str("kind", req.Kind).Msg("Report failed")
			if res == nil {
				continue
			}
		}
		fmt.Printf("%s report for %s: %s (%s)\n",
			res.Report.Kind(), res.Report.Subject(), res.Path, strings.Join(res.Sinks, ", "))
	}

	if failed {
		os.Exit(1)
	}
}

// buildRequests turns the flags into one request per report kind
func buildRequests(defaults config.ReportsConfig) ([]report.Request, error) {
	list := splitList(*tickers)

	w, err := parseWeights(*weights)
	if err != nil {
		return nil, err
	}

	asset := report.Request{Kind: report.KindAsset, Tickers: []string{defaults.Ticker}}
	if len(list) > 0 {
		asset.Tickers = list[:1]
	}
	portfolio := report.Request{Kind: report.KindPortfolio, Tickers: defaults.Tickers, Weights: w}
	if len(list) > 0 {
		portfolio.Tickers = list
	}

	switch strings.ToLower(*kind) {
	case report.KindAsset:
		return []report.Request{asset}, nil
	case report.KindPortfolio:
		return []report.Request{portfolio}, nil
	case kindAll:
		return []report.Request{asset, portfolio}, nil
	default:
		return nil, fmt.Errorf("unknown report kind %q", *kind)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseWeights(s string) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
