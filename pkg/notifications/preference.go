package notifications

import (
	"context"
	"errors"
	"time"
)

// Preference is a user's channel choice for one notification type.
type Preference struct {
	UserID           int64     `json:"user_id"`
	NotificationType string    `json:"notification_type"`
	Channels         []Channel `json:"channels"`
	Enabled          bool      `json:"enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PreferenceStore persists preferences, one row per (user, type).
type PreferenceStore interface {
	// GetPreference returns ErrPreferenceNotFound when the user never chose.
	GetPreference(ctx context.Context, userID int64, notificationType string) (Preference, error)
	// SavePreference upserts by (user, type).
	SavePreference(ctx context.Context, p Preference) error
	ListPreferences(ctx context.Context, userID int64) ([]Preference, error)
}

// Resolution is the effective preference for a (user, type) pair. Empty
// Channels means "use the caller or template default".
type Resolution struct {
	Channels []Channel
	Enabled  bool
}

// ResolvePreference returns {nil, true} when no preference is stored.
func ResolvePreference(ctx context.Context, store PreferenceStore, userID int64, notificationType string) (Resolution, error) {
	p, err := store.GetPreference(ctx, userID, notificationType)
	if errors.Is(err, ErrPreferenceNotFound) {
		return Resolution{Enabled: true}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Channels: p.Channels, Enabled: p.Enabled}, nil
}
