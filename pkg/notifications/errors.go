package notifications

import "errors"

var (
	// ErrTemplateUnavailable aborts a Queue call: the template is missing or disabled.
	ErrTemplateUnavailable = errors.New("notification template unavailable")
	ErrTemplateNotFound    = errors.New("notification template not found")
	ErrInvalidTemplate     = errors.New("invalid notification template")

	ErrPreferenceNotFound = errors.New("notification preference not found")
	ErrInvalidPreference  = errors.New("invalid notification preference")

	// ErrRecipientNotFound is channel scoped: the user has no contact data for that channel.
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidUserID     = errors.New("invalid user id")

	ErrUnknownChannel  = errors.New("unknown notification channel")
	ErrInvalidPriority = errors.New("invalid notification priority")

	// ErrNothingToDeliver is returned by a sender that had no target, e.g. a push
	// item with zero device tokens. The dispatcher records it as sent.
	ErrNothingToDeliver = errors.New("nothing to deliver")
	// ErrDeliveryFailed marks a queue item that exhausted its attempts.
	ErrDeliveryFailed = errors.New("notification delivery failed")
	ErrNoSender       = errors.New("no sender registered for channel")

	ErrItemNotFound      = errors.New("queue item not found")
	ErrInvalidTransition = errors.New("invalid queue item status transition")

	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidDevice  = errors.New("invalid device registration")

	ErrNotificationNotFound = errors.New("notification not found")

	ErrInvalidBackoff = errors.New("invalid retry backoff")

	ErrDispatcherRunning    = errors.New("dispatcher already started")
	ErrDispatcherNotRunning = errors.New("dispatcher not started")
)
