package logger

import (
	"log/slog"
	"strings"
)

// Config holds logger settings loaded from the environment.
type Config struct {
	Level   string `env:"LOG_LEVEL" envDefault:""`          // debug, info, warn, error; empty uses the environment preset
	Format  string `env:"LOG_FORMAT" envDefault:""`         // json or text; empty uses the environment preset
	Env     string `env:"APP_ENV" envDefault:"development"` // development, staging or production
	Service string `env:"APP_NAME" envDefault:"hrnotify"`   // value of the "service" attribute
}

// FromConfig turns a Config into options. Explicit level and format win over
// the environment preset.
func FromConfig(cfg Config) []Option {
	opts := []Option{WithEnvironment(cfg.Env, cfg.Service)}
	if cfg.Level != "" {
		opts = append(opts, WithLevel(ParseLevel(cfg.Level)))
	}
	if cfg.Format != "" {
		opts = append(opts, WithFormat(Format(strings.ToLower(cfg.Format))))
	}
	return opts
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
