// Package logger builds the structured slog loggers used across the
// notification engine and provides helper constructors for the attributes
// that show up in almost every record (queue item id, channel, user id, ...).
//
// # Architecture
//
// New picks a slog.TextHandler or slog.JSONHandler based on the configured
// Format and wraps it with LogHandlerDecorator. The decorator runs registered
// ContextExtractor callbacks on every Handle call so request scoped values end
// up in the record without being threaded through call sites.
//
// Attribute helpers live in attr.go. Helpers that accept an error or an
// arbitrary id return an empty slog.Attr for nil input, which slog drops.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "notifyd"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//	    logger.QueueItemID(item.ID),
//	    logger.Channel(string(item.Channel)),
//	    logger.UserID(item.UserID),
//	)
//
// # Configuration
//
// Config maps LOG_LEVEL, LOG_FORMAT, APP_ENV and APP_NAME environment
// variables onto options via FromConfig.
package logger
