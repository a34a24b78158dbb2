package push

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

// LogSender logs messages instead of sending them.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a development sender.
func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With(logger.Component("push"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "push message",
		logger.DeviceToken(msg.Token),
		slog.String("platform", msg.Platform),
		slog.String("title", msg.Title),
	)
	return nil
}
