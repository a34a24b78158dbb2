package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/pg"
)

const queueColumns = `id, recipient_user_id, template_id, notification_type, rendered_title, rendered_message,
	COALESCE(rendered_subject, ''), channel, recipient_data, payload, priority, scheduled_at, processed_at,
	reserved_at, attempts, max_attempts, status, COALESCE(error_message, ''), created_at, updated_at`

func scanQueueItem(row pgx.Row) (notifications.QueueItem, error) {
	var (
		it        notifications.QueueItem
		channel   string
		status    string
		priority  int16
		recipient []byte
	)
	err := row.Scan(&it.ID, &it.UserID, &it.TemplateID, &it.NotificationType, &it.Title, &it.Message,
		&it.Subject, &channel, &recipient, &it.Payload, &priority, &it.ScheduledAt, &it.ProcessedAt,
		&it.ReservedAt, &it.Attempts, &it.MaxAttempts, &status, &it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return notifications.QueueItem{}, err
	}

	it.Channel = notifications.Channel(channel)
	it.Status = notifications.Status(status)
	it.Priority = notifications.Priority(priority)
	it.Recipient, err = notifications.UnmarshalRecipient(it.Channel, recipient)
	return it, err
}

func collectQueueItems(rows pgx.Rows) ([]notifications.QueueItem, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.QueueItem, error) {
		return scanQueueItem(row)
	})
}

// Enqueue inserts the queue row and its delivery log in one transaction.
func (s *Store) Enqueue(ctx context.Context, item notifications.QueueItem, log notifications.DeliveryLog) error {
	recipient, err := notifications.MarshalRecipient(item.Recipient)
	if err != nil {
		return fmt.Errorf("encode recipient: %w", err)
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO notification_queue
				(id, recipient_user_id, template_id, notification_type, rendered_title, rendered_message,
				 rendered_subject, channel, recipient_data, payload, priority, scheduled_at, attempts,
				 max_attempts, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			item.ID, item.UserID, item.TemplateID, item.NotificationType, item.Title, item.Message,
			item.Subject, string(item.Channel), recipient, item.Payload, int16(item.Priority), item.ScheduledAt,
			item.Attempts, item.MaxAttempts, string(item.Status), item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: queue item %s exists", notifications.ErrInvalidTransition, item.ID)
			}
			if pg.IsForeignKeyViolationError(err) {
				return fmt.Errorf("%w: template %d", notifications.ErrTemplateNotFound, item.TemplateID)
			}
			return fmt.Errorf("insert queue item: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO notification_logs
				(id, queue_item_id, user_id, notification_type, channel, title, message, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			log.ID, item.ID, log.UserID, log.NotificationType, string(log.Channel), log.Title, log.Message,
			string(log.Status), log.CreatedAt, log.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery log: %w", err)
		}
		return nil
	})
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]notifications.QueueItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM notification_queue
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY priority DESC, scheduled_at ASC, created_at ASC
		LIMIT NULLIF($2, 0)`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	items, err := collectQueueItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	return items, nil
}

// Reserve is a single conditional update: of two concurrent callers only the
// one whose UPDATE matches status = 'pending' gets the row back.
func (s *Store) Reserve(ctx context.Context, id uuid.UUID, now time.Time) (notifications.QueueItem, bool, error) {
	item, err := scanQueueItem(s.db.QueryRow(ctx, `
		WITH reserved AS (
			UPDATE notification_queue
			SET status = 'processing', attempts = attempts + 1, reserved_at = $2, updated_at = $2
			WHERE id = $1 AND status = 'pending'
			RETURNING *
		), logged AS (
			UPDATE notification_logs SET status = 'processing', updated_at = $2
			WHERE queue_item_id IN (SELECT id FROM reserved)
		)
		SELECT `+queueColumns+` FROM reserved`,
		id, now,
	))
	if pg.IsNotFoundError(err) {
		return notifications.QueueItem{}, false, nil
	}
	if err != nil {
		return notifications.QueueItem{}, false, fmt.Errorf("reserve queue item: %w", err)
	}
	return item, true, nil
}

func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, note string) error {
	return s.finish(ctx, id, notifications.StatusSent, note, at)
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return s.finish(ctx, id, notifications.StatusFailed, errMsg, at)
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, status notifications.Status, msg string, at time.Time) error {
	var updated uuid.UUID
	err := s.db.QueryRow(ctx, `
		WITH finished AS (
			UPDATE notification_queue
			SET status = $2, error_message = NULLIF($3, ''), processed_at = $4, reserved_at = NULL, updated_at = $4
			WHERE id = $1 AND status = 'processing'
			RETURNING id
		), logged AS (
			UPDATE notification_logs SET status = $2, error_message = NULLIF($3, ''), updated_at = $4
			WHERE queue_item_id IN (SELECT id FROM finished)
		)
		SELECT id FROM finished`,
		id, string(status), msg, at,
	).Scan(&updated)
	if pg.IsNotFoundError(err) {
		return s.transitionError(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("mark item %s: %w", status, err)
	}
	return nil
}

func (s *Store) Retry(ctx context.Context, id uuid.UUID, errMsg string, next time.Time) error {
	var updated uuid.UUID
	err := s.db.QueryRow(ctx, `
		WITH retried AS (
			UPDATE notification_queue
			SET status = 'pending', error_message = NULLIF($2, ''), scheduled_at = $3, reserved_at = NULL, updated_at = now()
			WHERE id = $1 AND status = 'processing'
			RETURNING id
		), logged AS (
			UPDATE notification_logs SET status = 'pending', error_message = NULLIF($2, ''), updated_at = now()
			WHERE queue_item_id IN (SELECT id FROM retried)
		)
		SELECT id FROM retried`,
		id, errMsg, next,
	).Scan(&updated)
	if pg.IsNotFoundError(err) {
		return s.transitionError(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("retry item: %w", err)
	}
	return nil
}

// transitionError tells a missing row from one in the wrong state.
func (s *Store) transitionError(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notification_queue WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check queue item: %w", err)
	}
	if !exists {
		return notifications.ErrItemNotFound
	}
	return notifications.ErrInvalidTransition
}

func (s *Store) RequeueStale(ctx context.Context, reservedBefore, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		WITH stale AS (
			UPDATE notification_queue
			SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
				processed_at = CASE WHEN attempts >= max_attempts THEN $2 ELSE processed_at END,
				error_message = 'reservation expired',
				reserved_at = NULL,
				updated_at = $2
			WHERE status = 'processing' AND reserved_at < $1
			RETURNING id, status
		), logged AS (
			UPDATE notification_logs l
			SET status = stale.status, error_message = 'reservation expired', updated_at = $2
			FROM stale
			WHERE l.queue_item_id = stale.id
		)
		SELECT count(*) FROM stale`,
		reservedBefore, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("requeue stale items: %w", err)
	}
	return n, nil
}

func (s *Store) ListFailed(ctx context.Context, opts notifications.ListOptions) ([]notifications.QueueItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM notification_queue
		WHERE status = 'failed'
			AND ($1::text[] IS NULL OR notification_type = ANY ($1))
			AND ($2::timestamptz IS NULL OR updated_at >= $2)
		ORDER BY updated_at DESC
		LIMIT NULLIF($3, 0) OFFSET $4`,
		typesArg(opts), opts.Since, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list failed items: %w", err)
	}
	items, err := collectQueueItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list failed items: %w", err)
	}
	return items, nil
}

func typesArg(opts notifications.ListOptions) []string {
	if len(opts.Types) == 0 {
		return nil
	}
	return opts.Types
}

func idsArg(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
