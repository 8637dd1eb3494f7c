// Package resilience wraps outbound HTTP calls to the BAXperience backend and
// to Nominatim with a circuit breaker, a timeout and opt-in retries.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls when a client stops calling an upstream.
type BreakerConfig struct {
	Name string

	// HalfOpenProbes is how many requests may pass while half-open.
	HalfOpenProbes uint32

	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration

	// ResetInterval clears the closed-state counts periodically. Zero keeps
	// them until the state changes.
	ResetInterval time.Duration

	ReadyToTrip   func(counts gobreaker.Counts) bool
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig is tuned for an interactive session that makes a
// handful of calls: a dead upstream is detected after three attempts.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:           name,
		HalfOpenProbes: 1,
		Cooldown:       30 * time.Second,
		ReadyToTrip:    DefaultReadyToTrip,
		IsSuccessful:   DefaultIsSuccessful,
	}
}

// DefaultReadyToTrip opens the breaker after three consecutive failures, or
// once at least half of five or more requests have failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= 3 {
		return true
	}
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// DefaultIsSuccessful treats caller cancellation as neutral.
func DefaultIsSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenProbes,
		Interval:      cfg.ResetInterval,
		Timeout:       cfg.Cooldown,
		ReadyToTrip:   cfg.ReadyToTrip,
		IsSuccessful:  cfg.IsSuccessful,
		OnStateChange: cfg.OnStateChange,
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = DefaultReadyToTrip
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = DefaultIsSuccessful
	}
	return gobreaker.NewCircuitBreaker[*http.Response](settings) //nolint:bodyclose // type parameter
}
