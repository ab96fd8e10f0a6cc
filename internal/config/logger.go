package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName tags every log line written by the global logger
const ServiceName = "quantlens"

// InitLogger initializes the global logger on stdout
func InitLogger(level, format string) {
	InitLoggerWithOutput(level, format, os.Stdout)
}

// InitLoggerWithOutput initializes the global logger writing to out.
// format is "json" or "console"; an empty or unknown level means info.
func InitLoggerWithOutput(level, format string, out io.Writer) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()

	log.Debug().
		Str("level", logLevel.String()).
		Str("format", format).
		Str("version", GetVersion()).
		Msg("Logger initialized")
}

// NewLogger returns a child of the global logger for one component
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewProviderLogger returns a child logger for an upstream data provider
func NewProviderLogger(provider string) zerolog.Logger {
	return NewLogger("provider").With().Str("provider", provider).Logger()
}
