package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
)

func (s *Store) ListDeliveries(ctx context.Context, userID int64, opts notifications.ListOptions) ([]notifications.DeliveryLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, queue_item_id, user_id, notification_type, channel, title, message, status,
			COALESCE(error_message, ''), read_at, created_at, updated_at
		FROM notification_logs
		WHERE user_id = $1
			AND (NOT $2 OR read_at IS NULL)
			AND ($3::text[] IS NULL OR notification_type = ANY ($3))
			AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY created_at DESC
		LIMIT NULLIF($5, 0) OFFSET $6`,
		userID, opts.OnlyUnread, typesArg(opts), opts.Since, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.DeliveryLog, error) {
		var (
			l       notifications.DeliveryLog
			itemID  *uuid.UUID
			channel string
			status  string
		)
		err := row.Scan(&l.ID, &itemID, &l.UserID, &l.NotificationType, &channel, &l.Title, &l.Message,
			&status, &l.ErrorMessage, &l.ReadAt, &l.CreatedAt, &l.UpdatedAt)
		if itemID != nil {
			l.QueueItemID = *itemID
		}
		l.Channel = notifications.Channel(channel)
		l.Status = notifications.Status(status)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return logs, nil
}

func (s *Store) MarkDeliveriesRead(ctx context.Context, userID int64, at time.Time, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE notification_logs SET read_at = $2
		WHERE user_id = $1 AND id = ANY ($3::uuid[]) AND read_at IS NULL`,
		userID, at, idsArg(ids),
	)
	if err != nil {
		return fmt.Errorf("mark deliveries read: %w", err)
	}
	return nil
}

func (s *Store) CreateInboxEntry(ctx context.Context, e notifications.InboxEntry) error {
	var itemID *uuid.UUID
	if e.QueueItemID != uuid.Nil {
		itemID = &e.QueueItemID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO inbox_notifications (id, user_id, queue_item_id, notification_type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (queue_item_id) DO NOTHING`,
		e.ID, e.UserID, itemID, e.NotificationType, e.Title, e.Message, e.Data, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create inbox entry: %w", err)
	}
	return nil
}

func (s *Store) ListInbox(ctx context.Context, userID int64, opts notifications.ListOptions) ([]notifications.InboxEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, queue_item_id, notification_type, title, message, data, read_at, created_at
		FROM inbox_notifications
		WHERE user_id = $1
			AND (NOT $2 OR read_at IS NULL)
			AND ($3::text[] IS NULL OR notification_type = ANY ($3))
			AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY created_at DESC
		LIMIT NULLIF($5, 0) OFFSET $6`,
		userID, opts.OnlyUnread, typesArg(opts), opts.Since, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.InboxEntry, error) {
		var (
			e      notifications.InboxEntry
			itemID *uuid.UUID
		)
		err := row.Scan(&e.ID, &e.UserID, &itemID, &e.NotificationType, &e.Title, &e.Message,
			&e.Data, &e.ReadAt, &e.CreatedAt)
		if itemID != nil {
			e.QueueItemID = *itemID
		}
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return entries, nil
}

func (s *Store) MarkInboxRead(ctx context.Context, userID int64, at time.Time, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE inbox_notifications SET read_at = $2
		WHERE user_id = $1 AND id = ANY ($3::uuid[]) AND read_at IS NULL`,
		userID, at, idsArg(ids),
	)
	if err != nil {
		return fmt.Errorf("mark inbox read: %w", err)
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM inbox_notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
