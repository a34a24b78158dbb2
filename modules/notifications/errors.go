package notifications

import (
	"errors"

	"github.com/dmitrymomot/hrnotify/handler"
	notify "github.com/dmitrymomot/hrnotify/pkg/notifications"
)

// ClassifyError maps domain errors to HTTP errors. Unknown errors are
// returned unchanged and end up as 500.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notify.ErrInvalidUserID),
		errors.Is(err, notify.ErrInvalidDevice),
		errors.Is(err, notify.ErrInvalidPreference),
		errors.Is(err, notify.ErrUnknownChannel),
		errors.Is(err, notify.ErrInvalidPriority):
		return handler.ErrUnprocessableEntity.Wrap(err)
	case errors.Is(err, notify.ErrTemplateUnavailable),
		errors.Is(err, notify.ErrTemplateNotFound),
		errors.Is(err, notify.ErrUserNotFound),
		errors.Is(err, notify.ErrDeviceNotFound),
		errors.Is(err, notify.ErrNotificationNotFound),
		errors.Is(err, notify.ErrItemNotFound):
		return handler.ErrNotFound.Wrap(err)
	case errors.Is(err, notify.ErrInvalidTransition):
		return handler.ErrConflict.Wrap(err)
	}
	return err
}
