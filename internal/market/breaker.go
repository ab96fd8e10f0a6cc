package market

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/quantlens/internal/metrics"
)

// Provider circuit breaker settings
const (
	ProviderMinRequests     = 5                // Minimum requests before tripping
	ProviderFailureRatio    = 0.6              // Failure ratio threshold (60%)
	ProviderOpenTimeout     = 30 * time.Second // How long circuit stays open
	ProviderHalfOpenMaxReqs = 2                // Max requests in half-open state
	ProviderCountInterval   = 60 * time.Second // Window for counting failures
)

// BreakerSettings configures a provider circuit breaker
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultBreakerSettings returns the provider breaker defaults
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     ProviderMinRequests,
		FailureRatio:    ProviderFailureRatio,
		OpenTimeout:     ProviderOpenTimeout,
		HalfOpenMaxReqs: ProviderHalfOpenMaxReqs,
		CountInterval:   ProviderCountInterval,
	}
}

// newBreaker builds a circuit breaker that reports its state to Prometheus.
// Only errors for which counts returns true are counted as failures, so a
// caller mistake (bad series id, missing key) never opens the circuit.
func newBreaker(provider string, s BreakerSettings, counts func(error) bool) *gobreaker.CircuitBreaker {
	metrics.UpdateCircuitBreaker(provider, stateValue(gobreaker.StateClosed), false)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			failureRatio := float64(c.TotalFailures) / float64(c.Requests)
			return c.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !counts(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker state changed")
			metrics.UpdateCircuitBreaker(name, stateValue(to), to == gobreaker.StateOpen)
		},
	})
}

// stateValue maps breaker states to the gauge encoding (0 closed, 1 half-open, 2 open)
func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
