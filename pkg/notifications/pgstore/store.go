// Package pgstore implements notifications.Storage on PostgreSQL with pgx.
// The schema lives in db/migrations and is applied with pg.Migrate.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is a PostgreSQL backed notifications.Storage.
type Store struct {
	db DB
}

var _ notifications.Storage = (*Store)(nil)

// New creates a store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

const templateColumns = `id, name, title_template, body_template, COALESCE(subject_template, ''),
	default_channel, variables, enabled, created_at, updated_at`

func scanTemplate(row pgx.Row) (notifications.Template, error) {
	var (
		t       notifications.Template
		channel string
	)
	err := row.Scan(&t.ID, &t.Name, &t.TitleTemplate, &t.BodyTemplate, &t.SubjectTemplate,
		&channel, &t.Variables, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	t.DefaultChannel = notifications.Channel(channel)
	return t, err
}

func (s *Store) GetTemplate(ctx context.Context, name string) (notifications.Template, error) {
	t, err := scanTemplate(s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates WHERE name = $1`, name))
	if pg.IsNotFoundError(err) {
		return notifications.Template{}, notifications.ErrTemplateNotFound
	}
	if err != nil {
		return notifications.Template{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// TemplateState reads only the columns a cached template is checked against.
func (s *Store) TemplateState(ctx context.Context, name string) (notifications.TemplateState, error) {
	var st notifications.TemplateState
	err := s.db.QueryRow(ctx,
		`SELECT enabled, updated_at FROM notification_templates WHERE name = $1`, name,
	).Scan(&st.Enabled, &st.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return notifications.TemplateState{}, notifications.ErrTemplateNotFound
	}
	if err != nil {
		return notifications.TemplateState{}, fmt.Errorf("get template state: %w", err)
	}
	return st, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t notifications.Template) (notifications.Template, error) {
	if err := t.Validate(); err != nil {
		return notifications.Template{}, err
	}
	if t.Variables == nil {
		t.Variables = []string{}
	}

	saved, err := scanTemplate(s.db.QueryRow(ctx, `
		INSERT INTO notification_templates
			(name, title_template, body_template, subject_template, default_channel, variables, enabled)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			title_template = EXCLUDED.title_template,
			body_template = EXCLUDED.body_template,
			subject_template = EXCLUDED.subject_template,
			default_channel = EXCLUDED.default_channel,
			variables = EXCLUDED.variables,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING `+templateColumns,
		t.Name, t.TitleTemplate, t.BodyTemplate, t.SubjectTemplate, string(t.DefaultChannel), t.Variables, t.Enabled,
	))
	if err != nil {
		return notifications.Template{}, fmt.Errorf("save template: %w", err)
	}
	return saved, nil
}

func scanPreference(row pgx.Row) (notifications.Preference, error) {
	var (
		p        notifications.Preference
		channels []string
	)
	err := row.Scan(&p.UserID, &p.NotificationType, &channels, &p.Enabled, &p.UpdatedAt)
	p.Channels = make([]notifications.Channel, len(channels))
	for i, c := range channels {
		p.Channels[i] = notifications.Channel(c)
	}
	return p, err
}

func (s *Store) GetPreference(ctx context.Context, userID int64, notificationType string) (notifications.Preference, error) {
	p, err := scanPreference(s.db.QueryRow(ctx, `
		SELECT user_id, notification_type, channels, enabled, updated_at
		FROM notification_preferences
		WHERE user_id = $1 AND notification_type = $2`,
		userID, notificationType,
	))
	if pg.IsNotFoundError(err) {
		return notifications.Preference{}, notifications.ErrPreferenceNotFound
	}
	if err != nil {
		return notifications.Preference{}, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

func (s *Store) SavePreference(ctx context.Context, p notifications.Preference) error {
	channels := make([]string, len(p.Channels))
	for i, c := range p.Channels {
		channels[i] = string(c)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, notification_type, channels, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, notification_type) DO UPDATE SET
			channels = EXCLUDED.channels,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.NotificationType, channels, p.Enabled, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

func (s *Store) ListPreferences(ctx context.Context, userID int64) ([]notifications.Preference, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, notification_type, channels, enabled, updated_at
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY notification_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	prefs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Preference, error) {
		return scanPreference(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

func (s *Store) UpsertDevice(ctx context.Context, d notifications.Device) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_registrations
			(user_id, device_token, device_type, platform, app_version, os_version, is_active, last_used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $8)
		ON CONFLICT (device_token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_type = EXCLUDED.device_type,
			platform = EXCLUDED.platform,
			app_version = EXCLUDED.app_version,
			os_version = EXCLUDED.os_version,
			is_active = EXCLUDED.is_active,
			last_used_at = EXCLUDED.last_used_at,
			updated_at = EXCLUDED.updated_at`,
		d.UserID, d.Token, d.DeviceType, d.Platform, d.AppVersion, d.OSVersion, d.Active, d.LastUsedAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func (s *Store) DeactivateDevice(ctx context.Context, token string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE device_registrations SET is_active = FALSE, last_used_at = $2, updated_at = $2
		WHERE device_token = $1`,
		token, at,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate device: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ActiveDevices(ctx context.Context, userID int64) ([]notifications.Device, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, device_token, device_type, platform, COALESCE(app_version, ''), COALESCE(os_version, ''),
			is_active, last_used_at, created_at
		FROM device_registrations
		WHERE user_id = $1 AND is_active
		ORDER BY last_used_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	devices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Device, error) {
		var d notifications.Device
		err := row.Scan(&d.UserID, &d.Token, &d.DeviceType, &d.Platform, &d.AppVersion, &d.OSVersion,
			&d.Active, &d.LastUsedAt, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}
