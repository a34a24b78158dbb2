package notifications

import "time"

// Config holds the notification engine settings.
type Config struct {
	DispatchInterval time.Duration `env:"NOTIFY_DISPATCH_INTERVAL" envDefault:"5m"`
	BatchSize        int           `env:"NOTIFY_BATCH_SIZE" envDefault:"50"`
	Concurrency      int           `env:"NOTIFY_CONCURRENCY" envDefault:"1"`
	SendTimeout      time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"30s"`
	MaxAttempts      int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff     string        `env:"NOTIFY_RETRY_BACKOFF" envDefault:"fixed"`
	RetryDelay       time.Duration `env:"NOTIFY_RETRY_DELAY" envDefault:"0s"`
	MaxRetryDelay    time.Duration `env:"NOTIFY_MAX_RETRY_DELAY" envDefault:"1h"`
	StaleAfter       time.Duration `env:"NOTIFY_STALE_AFTER" envDefault:"15m"`
	TemplateCacheTTL time.Duration `env:"NOTIFY_TEMPLATE_CACHE_TTL" envDefault:"5m"`
	TickLockTTL      time.Duration `env:"NOTIFY_TICK_LOCK_TTL" envDefault:"10m"`
	TemplatesFile    string        `env:"NOTIFY_TEMPLATES_FILE"`
}

// DispatcherOptions translates the config into dispatcher options.
func (c Config) DispatcherOptions() ([]DispatcherOption, error) {
	backoff, err := NewBackoff(c.RetryBackoff, c.RetryDelay, c.MaxRetryDelay)
	if err != nil {
		return nil, err
	}

	return []DispatcherOption{
		WithInterval(c.DispatchInterval),
		WithBatchSize(c.BatchSize),
		WithConcurrency(c.Concurrency),
		WithSendTimeout(c.SendTimeout),
		WithBackoff(backoff),
		WithStaleAfter(c.StaleAfter),
	}, nil
}
