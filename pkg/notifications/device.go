package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

// Device is a push-capable device registered by a user.
type Device struct {
	UserID     int64     `json:"user_id"`
	Token      string    `json:"device_token"`
	DeviceType string    `json:"device_type"`
	Platform   string    `json:"platform"`
	AppVersion string    `json:"app_version,omitempty"`
	OSVersion  string    `json:"os_version,omitempty"`
	Active     bool      `json:"is_active"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeviceStore persists device registrations. Rows are never deleted.
type DeviceStore interface {
	// UpsertDevice inserts or refreshes the row keyed by d.Token. An existing
	// row keeps its CreatedAt.
	UpsertDevice(ctx context.Context, d Device) error
	// DeactivateDevice sets is_active=false and stamps last_used_at. It returns false when the token is unknown.
	DeactivateDevice(ctx context.Context, token string, at time.Time) (bool, error)
	// ActiveDevices returns the user's active devices, most recently used first.
	ActiveDevices(ctx context.Context, userID int64) ([]Device, error)
}

// DeviceRegistry handles device registration for push delivery.
type DeviceRegistry struct {
	store  DeviceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDeviceRegistry creates a registry over store.
func NewDeviceRegistry(store DeviceStore, log *slog.Logger) *DeviceRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceRegistry{store: store, logger: log, now: time.Now}
}

// Register upserts the device by token, marks it active and refreshes
// last_used_at. Registering the same token twice leaves one active row; a
// token that moves to another user is reassigned.
func (r *DeviceRegistry) Register(ctx context.Context, d Device) (bool, error) {
	d.Token = strings.TrimSpace(d.Token)
	if d.UserID <= 0 {
		return false, ErrInvalidUserID
	}
	if d.Token == "" {
		return false, fmt.Errorf("%w: device token is required", ErrInvalidDevice)
	}
	if d.DeviceType == "" || d.Platform == "" {
		return false, fmt.Errorf("%w: device type and platform are required", ErrInvalidDevice)
	}

	now := r.now()
	d.Active = true
	d.LastUsedAt = now
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}

	if err := r.store.UpsertDevice(ctx, d); err != nil {
		return false, fmt.Errorf("register device: %w", err)
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "device registered",
		logger.UserID(d.UserID),
		logger.DeviceToken(d.Token),
		slog.String("platform", d.Platform),
	)
	return true, nil
}

// Unregister soft deletes the device. It returns false when the token is unknown.
func (r *DeviceRegistry) Unregister(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, fmt.Errorf("%w: device token is required", ErrInvalidDevice)
	}

	ok, err := r.store.DeactivateDevice(ctx, token, r.now())
	if err != nil {
		return false, fmt.Errorf("unregister device: %w", err)
	}
	if ok {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "device unregistered", logger.DeviceToken(token))
	}
	return ok, nil
}
