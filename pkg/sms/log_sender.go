package sms

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
	return &LogSender{log: log.With(logger.Component("sms"))}
}

func (s *LogSender) SendSMS(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "sms message",
		slog.String("to", NormalizePhone(msg.To)),
		slog.String("body", msg.Body),
	)
	return nil
}
