// Package circuitbreaker builds sony/gobreaker breakers with shared settings
// so every external transport trips and recovers the same way.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

// Config holds breaker settings shared by all transports.
type Config struct {
	MaxRequests      uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"3"`      // requests let through while half-open
	Interval         time.Duration `env:"BREAKER_INTERVAL" envDefault:"10s"`        // closed-state counter reset period
	Timeout          time.Duration `env:"BREAKER_TIMEOUT" envDefault:"1m"`          // open-state duration before half-open
	FailureThreshold uint32        `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"` // consecutive failures that trip the breaker
}

// New creates a breaker named name. State changes are logged at warn level.
func New(name string, cfg Config, log *slog.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = slog.Default()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.LogAttrs(context.Background(), slog.LevelWarn, "circuit breaker state changed",
				logger.Component("circuitbreaker"),
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// IsOpen reports whether err was returned because the breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
