package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/hrnotify/pkg/email"
	"github.com/dmitrymomot/hrnotify/pkg/email/templates"
	"github.com/dmitrymomot/hrnotify/pkg/logger"
	"github.com/dmitrymomot/hrnotify/pkg/push"
	"github.com/dmitrymomot/hrnotify/pkg/sms"
)

// Sender delivers a reserved queue item over one channel. A nil error means
// delivered. ErrNothingToDeliver means there was no target and is recorded as
// sent.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, item QueueItem) error
}

// EmailSender renders the item as HTML and hands it to an email transport.
type EmailSender struct {
	transport email.EmailSender
}

// NewEmailSender creates the email channel sender.
func NewEmailSender(transport email.EmailSender) *EmailSender {
	return &EmailSender{transport: transport}
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, item QueueItem) error {
	rcpt, ok := item.Recipient.(EmailRecipient)
	if !ok || strings.TrimSpace(rcpt.Email) == "" {
		return fmt.Errorf("%w: email address missing", ErrRecipientNotFound)
	}

	body, err := templates.Render(ctx, templates.Notification(item.Title, item.Message))
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	subject := item.Subject
	if subject == "" {
		subject = item.Title
	}

	return s.transport.SendEmail(ctx, email.SendEmailParams{
		SendTo:   rcpt.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      item.NotificationType,
	})
}

// PushSender delivers to every device token captured at queue time.
type PushSender struct {
	transport push.Sender
	devices   DeviceStore
	logger    *slog.Logger
}

// PushSenderOption configures a PushSender.
type PushSenderOption func(*PushSender)

// WithDeviceCleanup deactivates devices whose token the provider rejects.
func WithDeviceCleanup(store DeviceStore) PushSenderOption {
	return func(s *PushSender) { s.devices = store }
}

// WithPushLogger sets the logger for the PushSender.
func WithPushLogger(l *slog.Logger) PushSenderOption {
	return func(s *PushSender) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewPushSender creates the push channel sender.
func NewPushSender(transport push.Sender, opts ...PushSenderOption) *PushSender {
	s := &PushSender{transport: transport, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PushSender) Channel() Channel { return ChannelPush }

// Send succeeds when at least one token was delivered. Zero tokens, or only
// tokens the provider rejected as invalid, yield ErrNothingToDeliver.
func (s *PushSender) Send(ctx context.Context, item QueueItem) error {
	rcpt, _ := item.Recipient.(PushRecipient)
	if len(rcpt.Tokens) == 0 {
		return ErrNothingToDeliver
	}

	data := map[string]string{
		"notification_type": item.NotificationType,
		"queue_item_id":     item.ID.String(),
	}

	var (
		delivered   int
		invalidOnly = true
		errs        []error
	)
	for i, token := range rcpt.Tokens {
		msg := push.Message{
			Token: token,
			Title: item.Title,
			Body:  item.Message,
			Data:  data,
		}
		if i < len(rcpt.Platforms) {
			msg.Platform = rcpt.Platforms[i]
		}

		err := s.transport.Send(ctx, msg)
		if err == nil {
			delivered++
			continue
		}
		errs = append(errs, err)

		if !errors.Is(err, push.ErrInvalidToken) {
			invalidOnly = false
			continue
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "push token rejected by provider",
			logger.DeviceToken(token),
			logger.UserID(item.UserID),
		)
		if s.devices != nil {
			if _, derr := s.devices.DeactivateDevice(ctx, token, time.Now()); derr != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to deactivate device",
					logger.DeviceToken(token),
					logger.Error(derr),
				)
			}
		}
	}

	switch {
	case delivered > 0:
		if len(errs) > 0 {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "push partially delivered",
				logger.QueueItemID(item.ID.String()),
				logger.Count("delivered", delivered),
				logger.Errors(errs...),
			)
		}
		return nil
	case invalidOnly:
		return errors.Join(append([]error{ErrNothingToDeliver}, errs...)...)
	}
	return errors.Join(errs...)
}

// SMSSender sends the rendered message as a text.
type SMSSender struct {
	transport sms.Sender
}

// NewSMSSender creates the sms channel sender.
func NewSMSSender(transport sms.Sender) *SMSSender {
	return &SMSSender{transport: transport}
}

func (s *SMSSender) Channel() Channel { return ChannelSMS }

// Send re-checks the phone number since contact data may have drifted since
// the item was queued.
func (s *SMSSender) Send(ctx context.Context, item QueueItem) error {
	rcpt, ok := item.Recipient.(SMSRecipient)
	if !ok || strings.TrimSpace(rcpt.Phone) == "" {
		return fmt.Errorf("%w: phone number missing", ErrRecipientNotFound)
	}

	body := item.Message
	if item.Title != "" {
		body = item.Title + ": " + item.Message
	}

	return s.transport.SendSMS(ctx, sms.Message{
		To:   sms.NormalizePhone(rcpt.Phone),
		Body: body,
	})
}

// InAppSender stores the item in the user's in-app inbox.
type InAppSender struct {
	store InboxStore
}

// NewInAppSender creates the in_app channel sender.
func NewInAppSender(store InboxStore) *InAppSender {
	return &InAppSender{store: store}
}

func (s *InAppSender) Channel() Channel { return ChannelInApp }

func (s *InAppSender) Send(ctx context.Context, item QueueItem) error {
	userID := item.UserID
	if rcpt, ok := item.Recipient.(InAppRecipient); ok && rcpt.UserID > 0 {
		userID = rcpt.UserID
	}

	return s.store.CreateInboxEntry(ctx, InboxEntry{
		ID:               uuid.New(),
		UserID:           userID,
		QueueItemID:      item.ID,
		NotificationType: item.NotificationType,
		Title:            item.Title,
		Message:          item.Message,
		Data:             item.Payload,
		CreatedAt:        time.Now(),
	})
}

// Breaker runs a call through a circuit breaker. *gobreaker.CircuitBreaker
// satisfies it.
type Breaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

type breakerSender struct {
	next Sender
	cb   Breaker
}

// WithCircuitBreaker wraps next so that consecutive transport failures open
// the breaker and later sends fail fast until it half-opens.
// ErrNothingToDeliver does not count as a failure.
func WithCircuitBreaker(next Sender, cb Breaker) Sender {
	if cb == nil {
		return next
	}
	return &breakerSender{next: next, cb: cb}
}

func (b *breakerSender) Channel() Channel { return b.next.Channel() }

func (b *breakerSender) Send(ctx context.Context, item QueueItem) error {
	var skipped error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := b.next.Send(ctx, item)
		if errors.Is(err, ErrNothingToDeliver) {
			skipped = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	return skipped
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc struct {
	Ch Channel
	Fn func(ctx context.Context, item QueueItem) error
}

func (f SenderFunc) Channel() Channel { return f.Ch }

func (f SenderFunc) Send(ctx context.Context, item QueueItem) error {
	return f.Fn(ctx, item)
}
