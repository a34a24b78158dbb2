package httpserver

import (
	"log/slog"
	"net"
	"time"
)

// Option configures the HTTP server.
type Option func(*options)

// WithAddr sets the listen address. ":0" picks a free port; use WithOnReady
// to learn which.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver.WithAddr: empty address")
	}
	return func(o *options) { o.addr = addr }
}

// WithReadTimeout bounds reading the whole request.
func WithReadTimeout(d time.Duration) Option {
	return durationOption("WithReadTimeout", d, func(o *options) { o.readTimeout = d })
}

// WithReadHeaderTimeout bounds reading request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return durationOption("WithReadHeaderTimeout", d, func(o *options) { o.readHeaderTimeout = d })
}

// WithWriteTimeout bounds writing the response.
func WithWriteTimeout(d time.Duration) Option {
	return durationOption("WithWriteTimeout", d, func(o *options) { o.writeTimeout = d })
}

// WithIdleTimeout bounds keep-alive idle time.
func WithIdleTimeout(d time.Duration) Option {
	return durationOption("WithIdleTimeout", d, func(o *options) { o.idleTimeout = d })
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return durationOption("WithShutdownTimeout", d, func(o *options) { o.shutdownTimeout = d })
}

// WithLogger sets the server logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOnReady registers a callback invoked with the bound address once the
// listener is open.
func WithOnReady(fn func(net.Addr)) Option {
	if fn == nil {
		panic("httpserver.WithOnReady: nil callback")
	}
	return func(o *options) { o.onReady = append(o.onReady, fn) }
}

func durationOption(name string, d time.Duration, apply Option) Option {
	if d <= 0 {
		panic("httpserver." + name + ": duration must be positive")
	}
	return apply
}
