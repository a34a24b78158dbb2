package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/hrnotify/pkg/binder"
	"github.com/dmitrymomot/hrnotify/pkg/logger"
	"github.com/dmitrymomot/hrnotify/pkg/requestid"
	"github.com/dmitrymomot/hrnotify/pkg/validator"
)

// Classifier maps a domain error to one carrying an HTTPError. It returns
// err unchanged when it has no opinion.
type Classifier func(err error) error

// Classify runs err through the binder mapping and then each classifier
// until one attaches an HTTPError.
func Classify(err error, classifiers ...Classifier) error {
	if err == nil {
		return nil
	}
	if hasStatus(err) {
		return err
	}
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return ErrUnsupportedMediaType.Wrap(err)
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		return ErrBadRequest.Wrap(err)
	}
	for _, c := range classifiers {
		if mapped := c(err); hasStatus(mapped) {
			return mapped
		}
	}
	return err
}

func hasStatus(err error) bool {
	var httpErr HTTPError
	return errors.As(err, &httpErr) || validator.IsValidationError(err)
}

// NewErrorHandler returns an ErrorHandler that classifies the error, logs
// it with the request id and writes a JSON error envelope. Client errors
// log at warn level, everything else at error.
func NewErrorHandler(log *slog.Logger, classifiers ...Classifier) ErrorHandler[Context] {
	if log == nil {
		log = logger.Nop()
	}

	return func(ctx Context, err error) {
		err = Classify(err, classifiers...)

		resp := JSONError(err).(*jsonResponse)
		level := slog.LevelError
		if resp.status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", resp.status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error response",
				logger.Error(renderErr),
				logger.Component("http"),
			)
		}
	}
}
