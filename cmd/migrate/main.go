// Database migration CLI tool
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ajitpratap0/quantlens/internal/config"
	"github.com/ajitpratap0/quantlens/internal/db"
	"github.com/ajitpratap0/quantlens/internal/vault"
)

func main() {
	// Parse command line flags
	command := flag.String("command", "migrate", "Command to run: migrate or status")
	configPath := flag.String("config", "", "Path to config file")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Database connection URL (overrides config)")
	flag.Parse()

	ctx := context.Background()

	if *dbURL == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if err := vault.Load(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", err)
			os.Exit(1)
		}
		*dbURL = cfg.Database.GetDSN()
	}

	database, err := db.New(ctx, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.Pool())

	switch *command {
	case "migrate":
		if err := migrator.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
			os.Exit(1)
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%03d  %-8s %s\n", s.Version, state, s.Description)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		fmt.Fprintf(os.Stderr, "Usage: migrate -command=[migrate|status]\n")
		os.Exit(1)
	}
}
