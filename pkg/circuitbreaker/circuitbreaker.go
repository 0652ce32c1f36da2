// Package circuitbreaker configures sony/gobreaker breakers for calls to
// services this process does not own.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config describes a breaker. Zero values fall back to the defaults below.
type Config struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. Zero keeps them until a success.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// IsSuccessful decides whether an error counts against the breaker.
	// Errors the remote side answered deliberately (e.g. not found) should return true.
	IsSuccessful func(err error) bool
	Logger       *slog.Logger
}

const (
	defaultMaxRequests      = 1
	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
)

// New returns a breaker for calls returning T.
func New[T any](cfg Config) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	threshold := cfg.FailureThreshold
	log := cfg.Logger

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})
}

// IsRejected reports whether err was produced by the breaker itself rather than
// by the protected call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
