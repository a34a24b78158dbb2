package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Template is a named notification pattern. Title, body and subject may
// contain {variable} placeholders.
type Template struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	TitleTemplate   string    `json:"title_template"`
	BodyTemplate    string    `json:"body_template"`
	SubjectTemplate string    `json:"subject_template,omitempty"`
	DefaultChannel  Channel   `json:"default_channel"`
	Variables       []string  `json:"variables,omitempty"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks that the template can be stored.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if t.TitleTemplate == "" && t.BodyTemplate == "" {
		return fmt.Errorf("%w: title or body is required", ErrInvalidTemplate)
	}
	if !t.DefaultChannel.Valid() {
		return fmt.Errorf("%w: default channel %q", ErrInvalidTemplate, t.DefaultChannel)
	}
	return nil
}

// TemplateStore persists templates. Templates are edited by administrators
// out of band; the queue only reads them.
type TemplateStore interface {
	// GetTemplate returns the template by name or ErrTemplateNotFound.
	// Disabled templates are returned as is.
	GetTemplate(ctx context.Context, name string) (Template, error)

	// SaveTemplate creates or replaces the template with the same name.
	SaveTemplate(ctx context.Context, t Template) (Template, error)
}

// TemplateState is the part of a template that decides whether a cached
// copy may still be used.
type TemplateState struct {
	Enabled   bool
	UpdatedAt time.Time
}

// TemplateStateReader reads TemplateState without loading the content.
// It returns ErrTemplateNotFound for unknown names.
type TemplateStateReader interface {
	TemplateState(ctx context.Context, name string) (TemplateState, error)
}

// VersionedTemplateStore is a TemplateStore that can report TemplateState.
// CachedTemplateStore requires it.
type VersionedTemplateStore interface {
	TemplateStore
	TemplateStateReader
}

// ResolveTemplate loads a template that may be used for new notifications.
// Missing and disabled templates both yield ErrTemplateUnavailable.
func ResolveTemplate(ctx context.Context, store TemplateStore, name string) (Template, error) {
	t, err := store.GetTemplate(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Template{}, errors.Join(ErrTemplateUnavailable, err)
		}
		return Template{}, fmt.Errorf("load template %q: %w", name, err)
	}
	if !t.Enabled {
		return Template{}, fmt.Errorf("%w: template %q is disabled", ErrTemplateUnavailable, name)
	}
	return t, nil
}
