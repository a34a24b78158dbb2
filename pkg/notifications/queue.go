package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueItem is one delivery of a rendered notification on one channel.
type QueueItem struct {
	ID               uuid.UUID      `json:"id"`
	UserID           int64          `json:"recipient_user_id"`
	TemplateID       int64          `json:"template_id"`
	NotificationType string         `json:"notification_type"`
	Title            string         `json:"rendered_title"`
	Message          string         `json:"rendered_message"`
	Subject          string         `json:"rendered_subject,omitempty"`
	Channel          Channel        `json:"channel"`
	Recipient        Recipient      `json:"recipient_data"`
	Payload          map[string]any `json:"payload,omitempty"`
	Priority         Priority       `json:"priority"`
	ScheduledAt      time.Time      `json:"scheduled_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	ReservedAt       *time.Time     `json:"reserved_at,omitempty"`
	Attempts         int            `json:"attempts"`
	MaxAttempts      int            `json:"max_attempts"`
	Status           Status         `json:"status"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Exhausted reports whether the item used up its attempts.
func (i QueueItem) Exhausted() bool {
	return i.Attempts >= i.MaxAttempts
}

// DeliveryLog is the durable outcome record of a queue item. It outlives the
// queue row.
type DeliveryLog struct {
	ID               uuid.UUID  `json:"id"`
	QueueItemID      uuid.UUID  `json:"queue_item_id"`
	UserID           int64      `json:"user_id"`
	NotificationType string     `json:"notification_type"`
	Channel          Channel    `json:"channel"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Status           Status     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// QueueStore is the durable notification queue. Producers only call Enqueue;
// every other method is owned by the dispatcher.
type QueueStore interface {
	// Enqueue inserts the item and its delivery log atomically.
	Enqueue(ctx context.Context, item QueueItem, log DeliveryLog) error

	// ListDue returns up to limit pending items with scheduled_at <= now,
	// ordered by priority DESC, scheduled_at ASC.
	ListDue(ctx context.Context, now time.Time, limit int) ([]QueueItem, error)

	// Reserve atomically moves a pending item to processing and increments
	// attempts. ok is false when the item is no longer pending.
	Reserve(ctx context.Context, id uuid.UUID, now time.Time) (item QueueItem, ok bool, err error)

	// MarkSent finishes a processing item. note is kept in error_message for
	// operator visibility and may be empty.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time, note string) error

	// Retry returns a processing item to pending, eligible again at next.
	Retry(ctx context.Context, id uuid.UUID, errMsg string, next time.Time) error

	// MarkFailed terminally fails a processing item.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error

	// RequeueStale releases items reserved before the cutoff: back to pending,
	// or failed when their attempts are exhausted. Returns the number released.
	RequeueStale(ctx context.Context, reservedBefore, now time.Time) (int, error)

	// ListFailed returns terminally failed items, newest first.
	ListFailed(ctx context.Context, opts ListOptions) ([]QueueItem, error)
}

// DeliveryLogStore exposes delivery history to administrators and users.
type DeliveryLogStore interface {
	ListDeliveries(ctx context.Context, userID int64, opts ListOptions) ([]DeliveryLog, error)
	MarkDeliveriesRead(ctx context.Context, userID int64, at time.Time, ids ...uuid.UUID) error
}

// ListOptions provides filtering and pagination for list queries.
type ListOptions struct {
	Limit      int        // 0 means no limit
	Offset     int        // rows to skip
	OnlyUnread bool       // only rows with no read_at
	Types      []string   // notification types to include, all when empty
	Since      *time.Time // only rows created at or after
}

func (o ListOptions) matchesType(t string) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, v := range o.Types {
		if v == t {
			return true
		}
	}
	return false
}

// QueueOption customizes a Queue call.
type QueueOption func(*queueOptions)

type queueOptions struct {
	channel     Channel
	priority    Priority
	scheduledAt time.Time
	maxAttempts int
}

// WithChannel overrides the template's default channel. Stored preference
// channels still take precedence.
func WithChannel(c Channel) QueueOption {
	return func(o *queueOptions) { o.channel = c }
}

// WithPriority sets the item priority. Default is PriorityNormal.
func WithPriority(p Priority) QueueOption {
	return func(o *queueOptions) {
		if p.Valid() {
			o.priority = p
		}
	}
}

// WithScheduledAt delays delivery until t.
func WithScheduledAt(t time.Time) QueueOption {
	return func(o *queueOptions) { o.scheduledAt = t }
}

// WithMaxAttempts overrides the service default attempt limit.
func WithMaxAttempts(n int) QueueOption {
	return func(o *queueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}
