package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/quantlens/internal/analysis"
	"github.com/ajitpratap0/quantlens/internal/api"
	"github.com/ajitpratap0/quantlens/internal/catalog"
	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/db"
	"github.com/ajitpratap0/quantlens/internal/market"
	"github.com/ajitpratap0/quantlens/internal/metrics"
	"github.com/ajitpratap0/quantlens/internal/vault"
)

const (
	warmInterval    = 6 * time.Hour
	metricsInterval = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to configs/config.yaml)")
	verify := flag.Bool("verify", false, "Check database, Redis and NATS connectivity before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Str("version", cfg.App.Version).Msg("Starting QuantLens API Server")

	// Create context that listens for interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := vault.Load(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
	}

	validatorOpts := config.DefaultValidatorOptions()
	validatorOpts.VerifyConnectivity = *verify
	if err := config.NewValidator(cfg, validatorOpts).ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
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

	serverCfg := api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RequestTimeout: cfg.API.GetRequestTimeout(),
		Version:        cfg.App.Version,
	}
	deps := analysis.Deps{Series: fred, Searcher: fred, Prices: stooq}

	// Series cache
	var cached *market.CachedFetcher
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}()

		cache := market.NewSeriesCache(client, cfg.Redis.GetCacheTTL())
		if err := cache.Health(ctx); err != nil {
			log.Error().Err(err).Msg("Redis unavailable, continuing without series cache")
		} else {
			cached = market.NewCachedFetcher(fred, cache)
			deps.Series = cached
			serverCfg.Cache = cache
		}
	}

	// Database
	var (
		database *db.DB
		repo     catalog.Repository
		reports  *db.ReportRepository
	)
	if cfg.Database.Enabled {
		database, err = db.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize database, continuing without DB")
			database = nil
		} else if err := database.Migrate(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to migrate database, continuing without DB")
			database.Close()
			database = nil
		}
	}
	if database != nil {
		defer database.Close()

		repo = db.NewCatalogRepository(database.Pool())
		reports = db.NewReportRepository(database.Pool())
		runs := db.NewRunRepository(database.Pool())

		deps.Runs = runs
		serverCfg.DB = database
		serverCfg.Reports = reports
		serverCfg.Runs = runs
	}

	cat, err := catalog.New(repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build series catalog")
	}
	if err := cat.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load dynamic catalog entries")
	}
	deps.Catalog = cat

	service := analysis.NewService(cfg.Analysis, deps)
	serverCfg.Service = service

	if cached != nil {
		warmer := market.NewWarmer(cached, cat.DefaultSeriesIDs(), cfg.Analysis.LookbackDays, warmInterval)
		defer warmer.Stop()
		go func() {
			if err := warmer.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Series cache warmer failed")
			}
		}()
	}

	// Metrics
	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
		}

		updater := metrics.NewUpdater(snapshot(cat, database, reports), metricsInterval)
		defer updater.Stop()
		go updater.Start(ctx)
	}

	server := api.NewServer(serverCfg)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}
	cancel()

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}

// snapshot collects the gauges refreshed by the metrics updater
func snapshot(cat *catalog.Catalog, database *db.DB, reports *db.ReportRepository) metrics.SnapshotFunc {
	return func(ctx context.Context) (metrics.Snapshot, error) {
		s := metrics.Snapshot{CatalogEntries: cat.Len()}
		if database == nil {
			return s, nil
		}

		s.DBActive, s.DBIdle = database.Stats()
		count, err := reports.Count(ctx)
		if err != nil {
			return s, err
		}
		s.StoredReports = count
		return s, nil
	}
}
