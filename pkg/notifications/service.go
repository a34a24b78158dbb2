package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

// DefaultMaxAttempts is the attempt limit for items queued without WithMaxAttempts.
const DefaultMaxAttempts = 3

// Service is the producer-facing entry point. It turns a template and payload
// into queue items, one per channel, and exposes the read APIs over
// preferences, delivery logs and the in-app inbox.
type Service struct {
	storage     Storage
	templates   TemplateStore
	recipients  *RecipientResolver
	devices     *DeviceRegistry
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTemplateStore replaces the template source, e.g. with a CachedTemplateStore.
func WithTemplateStore(ts TemplateStore) ServiceOption {
	return func(s *Service) {
		if ts != nil {
			s.templates = ts
		}
	}
}

// WithDefaultMaxAttempts sets the attempt limit applied when the caller does not pass one.
func WithDefaultMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new notification service.
func NewService(storage Storage, directory ContactDirectory, opts ...ServiceOption) *Service {
	s := &Service{
		storage:     storage,
		templates:   storage,
		recipients:  NewRecipientResolver(directory, storage),
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.devices = NewDeviceRegistry(storage, s.logger)
	s.devices.now = s.now

	return s
}

// Devices returns the device registry sharing the service storage.
func (s *Service) Devices() *DeviceRegistry {
	return s.devices
}

// Queue renders the template for every channel the user should receive it on
// and enqueues one pending item per channel. It returns how many channels were
// queued. Only ErrTemplateUnavailable, ErrInvalidUserID and storage errors
// abort the call; a suppressed preference returns 0 with no error, and a
// channel whose recipient cannot be resolved is skipped.
func (s *Service) Queue(ctx context.Context, userID int64, templateName string, payload map[string]any, opts ...QueueOption) (int, error) {
	if userID <= 0 {
		return 0, ErrInvalidUserID
	}

	o := queueOptions{
		priority:    PriorityNormal,
		maxAttempts: s.maxAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tmpl, err := ResolveTemplate(ctx, s.templates, templateName)
	if err != nil {
		return 0, err
	}

	pref, err := ResolvePreference(ctx, s.storage, userID, templateName)
	if err != nil {
		return 0, fmt.Errorf("resolve preference: %w", err)
	}
	if !pref.Enabled {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "notification suppressed by preference",
			logger.UserID(userID),
			logger.NotificationType(templateName),
		)
		return 0, nil
	}

	channels := pref.Channels
	if len(channels) == 0 {
		ch := o.channel
		if ch == "" {
			ch = tmpl.DefaultChannel
		}
		channels = []Channel{ch}
	}

	now := s.now()
	scheduledAt := o.scheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	content := Render(tmpl, payload)
	if missing := MissingVariables(tmpl, payload); len(missing) > 0 {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "template rendered with unresolved placeholders",
			logger.NotificationType(templateName),
			slog.Any("missing", missing),
		)
	}

	queued := 0
	for _, ch := range dedupeChannels(channels) {
		if !ch.Valid() {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "skipping unknown channel",
				logger.UserID(userID),
				logger.Channel(string(ch)),
			)
			continue
		}

		rcpt, err := s.recipients.Resolve(ctx, userID, ch)
		if errors.Is(err, ErrRecipientNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "recipient unresolvable, channel skipped",
				logger.UserID(userID),
				logger.Channel(string(ch)),
				logger.NotificationType(templateName),
				logger.Error(err),
			)
			continue
		}
		if err != nil {
			return queued, fmt.Errorf("resolve %s recipient: %w", ch, err)
		}

		item := QueueItem{
			ID:               uuid.New(),
			UserID:           userID,
			TemplateID:       tmpl.ID,
			NotificationType: tmpl.Name,
			Title:            content.Title,
			Message:          content.Message,
			Subject:          content.Subject,
			Channel:          ch,
			Recipient:        rcpt,
			Payload:          payload,
			Priority:         o.priority,
			ScheduledAt:      scheduledAt,
			MaxAttempts:      o.maxAttempts,
			Status:           StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		entry := DeliveryLog{
			ID:               uuid.New(),
			QueueItemID:      item.ID,
			UserID:           userID,
			NotificationType: tmpl.Name,
			Channel:          ch,
			Title:            content.Title,
			Message:          content.Message,
			Status:           StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := s.storage.Enqueue(ctx, item, entry); err != nil {
			return queued, fmt.Errorf("enqueue %s item: %w", ch, err)
		}
		queued++

		s.logger.LogAttrs(ctx, slog.LevelDebug, "notification queued",
			logger.QueueItemID(item.ID.String()),
			logger.UserID(userID),
			logger.Channel(string(ch)),
			logger.NotificationType(tmpl.Name),
			slog.String("priority", item.Priority.String()),
		)
	}

	return queued, nil
}

func dedupeChannels(in []Channel) []Channel {
	out := make([]Channel, 0, len(in))
	for _, c := range in {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// RegisterDevice upserts a push device. See DeviceRegistry.Register.
func (s *Service) RegisterDevice(ctx context.Context, d Device) (bool, error) {
	return s.devices.Register(ctx, d)
}

// UnregisterDevice soft deletes a push device. See DeviceRegistry.Unregister.
func (s *Service) UnregisterDevice(ctx context.Context, token string) (bool, error) {
	return s.devices.Unregister(ctx, token)
}

func (s *Service) GetPreferences(ctx context.Context, userID int64) ([]Preference, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	return s.storage.ListPreferences(ctx, userID)
}

// SetPreference validates and upserts a preference. Duplicate channels are
// collapsed.
func (s *Service) SetPreference(ctx context.Context, p Preference) (Preference, error) {
	if p.UserID <= 0 {
		return Preference{}, ErrInvalidUserID
	}
	if p.NotificationType == "" {
		return Preference{}, fmt.Errorf("%w: notification type is required", ErrInvalidPreference)
	}
	for _, c := range p.Channels {
		if !c.Valid() {
			return Preference{}, fmt.Errorf("%w: %q", ErrUnknownChannel, c)
		}
	}
	p.Channels = dedupeChannels(p.Channels)
	p.UpdatedAt = s.now()

	if err := s.storage.SavePreference(ctx, p); err != nil {
		return Preference{}, fmt.Errorf("save preference: %w", err)
	}
	return p, nil
}

// UserNotifications lists the user's delivery history, newest first.
func (s *Service) UserNotifications(ctx context.Context, userID int64, opts ListOptions) ([]DeliveryLog, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	return s.storage.ListDeliveries(ctx, userID, opts)
}

// MarkAsRead sets read_at on the user's delivery log rows.
func (s *Service) MarkAsRead(ctx context.Context, userID int64, ids ...uuid.UUID) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if len(ids) == 0 {
		return nil
	}
	return s.storage.MarkDeliveriesRead(ctx, userID, s.now(), ids...)
}

func (s *Service) Inbox(ctx context.Context, userID int64, opts ListOptions) ([]InboxEntry, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	return s.storage.ListInbox(ctx, userID, opts)
}

func (s *Service) MarkInboxRead(ctx context.Context, userID int64, ids ...uuid.UUID) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if len(ids) == 0 {
		return nil
	}
	return s.storage.MarkInboxRead(ctx, userID, s.now(), ids...)
}

// MarkAllInboxRead marks every unread inbox entry of the user as read.
func (s *Service) MarkAllInboxRead(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	entries, err := s.storage.ListInbox(ctx, userID, ListOptions{OnlyUnread: true})
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return s.MarkInboxRead(ctx, userID, ids...)
}

func (s *Service) CountUnread(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, ErrInvalidUserID
	}
	return s.storage.CountUnread(ctx, userID)
}

// FailedDeliveries lists queue items that exhausted their attempts, newest
// first. It is the dead-letter report for operators.
func (s *Service) FailedDeliveries(ctx context.Context, opts ListOptions) ([]QueueItem, error) {
	return s.storage.ListFailed(ctx, opts)
}
