package notifications

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes how long a failed item waits before it becomes due
// again. Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay after the given attempt. Attempt starts at 1.
	NextInterval(attempt int) time.Duration
}

// FixedBackoff waits the same interval after every failure. The zero value
// retries on the next tick.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// maxDelay is the longest representable delay. Uncapped strategies saturate
// here instead of wrapping negative.
const maxDelay = time.Duration(math.MaxInt64)

// LinearBackoff waits Interval*attempt, capped at MaxInterval.
type LinearBackoff struct {
	Interval    time.Duration
	MaxInterval time.Duration
}

func (l LinearBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 || l.Interval <= 0 {
		return 0
	}

	delay := maxDelay
	if time.Duration(attempt) <= maxDelay/l.Interval {
		delay = l.Interval * time.Duration(attempt)
	}
	if l.MaxInterval > 0 && delay > l.MaxInterval {
		delay = l.MaxInterval
	}
	return delay
}

// ExponentialBackoff implements exponential backoff with optional jitter.
// Formula: min(InitialInterval * Multiplier^(attempt-1) * (1 ± JitterFactor), MaxInterval)
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 || e.InitialInterval <= 0 {
		return 0
	}

	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(e.InitialInterval) * math.Pow(multiplier, float64(attempt-1))

	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}

	if e.MaxInterval > 0 && interval > float64(e.MaxInterval) {
		interval = float64(e.MaxInterval)
	}
	if interval >= float64(maxDelay) || math.IsNaN(interval) {
		return maxDelay
	}

	return time.Duration(interval)
}

// Backoff kinds accepted by NewBackoff.
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// NewBackoff builds a strategy by kind. A zero delay disables backoff for
// every kind.
func NewBackoff(kind string, delay, maxDelay time.Duration) (BackoffStrategy, error) {
	switch kind {
	case "", BackoffFixed:
		return FixedBackoff{Interval: delay}, nil
	case BackoffLinear:
		return LinearBackoff{Interval: delay, MaxInterval: maxDelay}, nil
	case BackoffExponential:
		return ExponentialBackoff{
			InitialInterval: delay,
			MaxInterval:     maxDelay,
			Multiplier:      2,
			JitterFactor:    0.1,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidBackoff, kind)
}
