package pgstore_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/notifications/pgstore"
	"github.com/dmitrymomot/hrnotify/pkg/pg"
)

// setup connects to PG_TEST_CONN_URL, applies migrations and empties the
// notification tables. Tests in this package share one database and do not
// run in parallel.
func setup(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("PG_TEST_CONN_URL")
	if url == "" {
		t.Skip("PG_TEST_CONN_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxConns:         10,
		RetryAttempts:    1,
		MigrationsPath:   "../../../db/migrations",
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pg.Migrate(ctx, pool, cfg, log))

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (id BIGINT PRIMARY KEY, email TEXT, phone TEXT, full_name TEXT);
		TRUNCATE users, inbox_notifications, device_registrations, notification_logs,
			notification_queue, notification_preferences, notification_templates`)
	require.NoError(t, err)

	return pool
}

func leaveApproved() notifications.Template {
	return notifications.Template{
		Name:           "leave_approved",
		TitleTemplate:  "{leave_type} leave approved",
		BodyTemplate:   "Your {leave_type} leave from {start} to {end} has been approved.",
		DefaultChannel: notifications.ChannelEmail,
		Enabled:        true,
	}
}

func TestStore_QueueScenario(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO users (id, email, full_name) VALUES (42, 'jane@example.com', 'Jane Doe')`)
	require.NoError(t, err)

	store := pgstore.New(pool)
	_, err = store.SaveTemplate(ctx, leaveApproved())
	require.NoError(t, err)

	svc := notifications.NewService(store, pgstore.NewDirectory(pool, ""),
		notifications.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	n, err := svc.Queue(ctx, 42, "leave_approved", map[string]any{
		"leave_type": "Annual",
		"start":      "2026-02-01",
		"end":        "2026-02-05",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := store.ListDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	item := due[0]
	assert.Equal(t, notifications.StatusPending, item.Status)
	assert.Equal(t, notifications.ChannelEmail, item.Channel)
	assert.Equal(t, notifications.PriorityNormal, item.Priority)
	assert.Equal(t, notifications.EmailRecipient{Email: "jane@example.com", FullName: "Jane Doe"}, item.Recipient)
	assert.Contains(t, item.Message, "Annual")
	assert.Contains(t, item.Message, "2026-02-01")
	assert.Contains(t, item.Message, "2026-02-05")
	assert.Equal(t, "Annual", item.Payload["leave_type"])

	// user 43 has no row: email is unresolvable and nothing is queued
	n, err = svc.Queue(ctx, 43, "leave_approved", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_TemplateStateTracksDirectEdits(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	store := pgstore.New(pool)

	saved, err := store.SaveTemplate(ctx, leaveApproved())
	require.NoError(t, err)

	st, err := store.TemplateState(ctx, "leave_approved")
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.True(t, saved.UpdatedAt.Equal(st.UpdatedAt))

	_, err = pool.Exec(ctx, `UPDATE notification_templates SET enabled = FALSE WHERE name = 'leave_approved'`)
	require.NoError(t, err)

	st, err = store.TemplateState(ctx, "leave_approved")
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.True(t, st.UpdatedAt.After(saved.UpdatedAt))

	_, err = notifications.ResolveTemplate(ctx, store, "leave_approved")
	assert.ErrorIs(t, err, notifications.ErrTemplateUnavailable)

	_, err = store.TemplateState(ctx, "missing")
	assert.ErrorIs(t, err, notifications.ErrTemplateNotFound)
}

func TestStore_ReserveIsAtomic(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	store := pgstore.New(pool)

	tmpl, err := store.SaveTemplate(ctx, leaveApproved())
	require.NoError(t, err)

	now := time.Now()
	item := notifications.QueueItem{
		ID:               uuid.New(),
		UserID:           1,
		TemplateID:       tmpl.ID,
		NotificationType: tmpl.Name,
		Title:            "t",
		Message:          "m",
		Channel:          notifications.ChannelInApp,
		Recipient:        notifications.InAppRecipient{UserID: 1},
		Priority:         notifications.PriorityHigh,
		ScheduledAt:      now,
		MaxAttempts:      2,
		Status:           notifications.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Enqueue(ctx, item, notifications.DeliveryLog{
		ID: uuid.New(), QueueItemID: item.ID, UserID: 1, NotificationType: tmpl.Name,
		Channel: item.Channel, Status: notifications.StatusPending, CreatedAt: now, UpdatedAt: now,
	}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Reserve(ctx, item.ID, time.Now())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	// first failure goes back to pending, second exhausts the attempts
	require.NoError(t, store.Retry(ctx, item.ID, "timeout", time.Now()))
	reserved, ok, err := store.Reserve(ctx, item.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, reserved.Attempts)
	assert.True(t, reserved.Exhausted())
	require.NoError(t, store.MarkFailed(ctx, item.ID, "timeout", time.Now()))

	assert.ErrorIs(t, store.MarkSent(ctx, item.ID, time.Now(), ""), notifications.ErrInvalidTransition)
	assert.ErrorIs(t, store.MarkSent(ctx, uuid.New(), time.Now(), ""), notifications.ErrItemNotFound)

	due, err := store.ListDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	failed, err := store.ListFailed(ctx, notifications.ListOptions{Types: []string{tmpl.Name}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "timeout", failed[0].ErrorMessage)

	logs, err := store.ListDeliveries(ctx, 1, notifications.ListOptions{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, notifications.StatusFailed, logs[0].Status)
}

func TestStore_Devices(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	registry := notifications.NewDeviceRegistry(pgstore.New(pool), slog.New(slog.NewTextHandler(io.Discard, nil)))

	device := notifications.Device{UserID: 7, Token: "tok-A", DeviceType: "mobile", Platform: "android"}
	for range 2 {
		ok, err := registry.Register(ctx, device)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	var rows, active int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE is_active) FROM device_registrations WHERE device_token = 'tok-A'`,
	).Scan(&rows, &active))
	assert.Equal(t, 1, rows)
	assert.Equal(t, 1, active)

	ok, err := registry.Unregister(ctx, "tok-A")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE is_active) FROM device_registrations WHERE device_token = 'tok-A'`,
	).Scan(&rows, &active))
	assert.Equal(t, 1, rows)
	assert.Equal(t, 0, active)

	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	ok, err = pgstore.New(pool).DeactivateDevice(ctx, "tok-A", at)
	require.NoError(t, err)
	assert.True(t, ok)

	var lastUsed, updated time.Time
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT last_used_at, updated_at FROM device_registrations WHERE device_token = 'tok-A'`,
	).Scan(&lastUsed, &updated))
	assert.True(t, at.Equal(lastUsed), "last_used_at = %s", lastUsed)
	assert.True(t, at.Equal(updated), "updated_at = %s", updated)
}

func TestStore_PreferencesAndInbox(t *testing.T) {
	pool := setup(t)
	ctx := context.Background()
	store := pgstore.New(pool)

	_, err := store.GetPreference(ctx, 5, "leave_approved")
	assert.ErrorIs(t, err, notifications.ErrPreferenceNotFound)

	require.NoError(t, store.SavePreference(ctx, notifications.Preference{
		UserID: 5, NotificationType: "leave_approved",
		Channels: []notifications.Channel{notifications.ChannelEmail, notifications.ChannelSMS}, Enabled: true,
	}))
	require.NoError(t, store.SavePreference(ctx, notifications.Preference{
		UserID: 5, NotificationType: "leave_approved", Enabled: false,
	}))
	p, err := store.GetPreference(ctx, 5, "leave_approved")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.Empty(t, p.Channels)

	itemID := uuid.New()
	entry := notifications.InboxEntry{
		ID: uuid.New(), UserID: 5, QueueItemID: itemID, NotificationType: "policy_update",
		Title: "Policy updated", Message: "m", Data: map[string]any{"policy": "remote"},
	}
	require.NoError(t, store.CreateInboxEntry(ctx, entry))
	entry.ID = uuid.New()
	require.NoError(t, store.CreateInboxEntry(ctx, entry))

	n, err := store.CountUnread(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := store.ListInbox(ctx, 5, notifications.ListOptions{OnlyUnread: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, itemID, entries[0].QueueItemID)
	assert.Equal(t, "remote", entries[0].Data["policy"])

	require.NoError(t, store.MarkInboxRead(ctx, 5, time.Now(), entries[0].ID))
	n, err = store.CountUnread(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
