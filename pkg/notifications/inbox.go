package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InboxEntry is an in-app notification shown in the user's inbox.
type InboxEntry struct {
	ID               uuid.UUID      `json:"id"`
	UserID           int64          `json:"user_id"`
	QueueItemID      uuid.UUID      `json:"queue_item_id"`
	NotificationType string         `json:"notification_type"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	Data             map[string]any `json:"data,omitempty"`
	ReadAt           *time.Time     `json:"read_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Read reports whether the entry was read.
func (e InboxEntry) Read() bool {
	return e.ReadAt != nil
}

// InboxStore persists in-app notifications.
type InboxStore interface {
	// CreateInboxEntry stores e. Creating the same QueueItemID twice is a no-op,
	// so a retried in-app delivery shows up once.
	CreateInboxEntry(ctx context.Context, e InboxEntry) error
	ListInbox(ctx context.Context, userID int64, opts ListOptions) ([]InboxEntry, error)
	MarkInboxRead(ctx context.Context, userID int64, at time.Time, ids ...uuid.UUID) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// Storage is everything the engine persists. MemoryStorage and the
// PostgreSQL store in pgstore implement it.
type Storage interface {
	TemplateStore
	PreferenceStore
	DeviceStore
	QueueStore
	DeliveryLogStore
	InboxStore
}
