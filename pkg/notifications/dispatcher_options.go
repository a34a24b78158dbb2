package notifications

import (
	"log/slog"
	"time"
)

// DispatcherOption is a functional option for configuring a dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	interval    time.Duration
	batchSize   int
	concurrency int
	sendTimeout time.Duration
	staleAfter  time.Duration
	backoff     BackoffStrategy
	locker      Locker
	lockKey     string
	lockTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// WithInterval sets how often the dispatcher runs a tick.
func WithInterval(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithBatchSize sets how many due items a scheduled tick selects.
func WithBatchSize(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency sets how many items of a batch are sent in parallel.
// With 1 items are sent one after another in selection order.
func WithConcurrency(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSendTimeout bounds a single send. A timeout counts as a failed attempt.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithStaleAfter releases items stuck in processing for longer than d.
// Zero disables recovery.
func WithStaleAfter(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d >= 0 {
			o.staleAfter = d
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(b BackoffStrategy) DispatcherOption {
	return func(o *dispatcherOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithLocker guards ticks across processes. A tick that cannot take the lock is skipped.
func WithLocker(l Locker, ttl time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDispatcherClock overrides time.Now.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(o *dispatcherOptions) {
		if now != nil {
			o.now = now
		}
	}
}
