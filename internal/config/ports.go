// Package config provides configuration management for QuantLens.
// This file centralizes the default ports of the services QuantLens talks to.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// Port Allocation Strategy:
//   8080-8099: API servers
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

// Service Ports
const (
	// APIServerPort is the port for the REST API server.
	APIServerPort = 8080

	// MetricsPort is the port of the standalone Prometheus metrics server.
	MetricsPort = 9100
)

// Infrastructure Service Ports
const (
	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)
