package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

// Cache is a byte cache with TTL. Get returns nil, nil on a miss.
// pkg/redis.Storage satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CachedTemplateStore caches template content in front of a
// VersionedTemplateStore. Every read still asks the store for the
// TemplateState: Enabled always comes from the store, and a cached copy is
// used only while its UpdatedAt matches. Cache errors are logged and fall
// through to the store.
type CachedTemplateStore struct {
	next   VersionedTemplateStore
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedTemplateStore wraps next. ttl <= 0 falls back to five minutes.
func NewCachedTemplateStore(next VersionedTemplateStore, cache Cache, ttl time.Duration, log *slog.Logger) *CachedTemplateStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedTemplateStore{next: next, cache: cache, ttl: ttl, logger: log}
}

func templateCacheKey(name string) string {
	return "template:" + name
}

func (c *CachedTemplateStore) GetTemplate(ctx context.Context, name string) (Template, error) {
	key := templateCacheKey(name)

	state, err := c.next.TemplateState(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			c.drop(ctx, name)
		}
		return Template{}, err
	}

	if t, ok := c.cached(ctx, name); ok && t.UpdatedAt.Equal(state.UpdatedAt) {
		t.Enabled = state.Enabled
		return t, nil
	}

	t, err := c.next.GetTemplate(ctx, name)
	if err != nil {
		return Template{}, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "template cache write failed",
				logger.NotificationType(name),
				logger.Error(err),
			)
		}
	}
	return t, nil
}

func (c *CachedTemplateStore) TemplateState(ctx context.Context, name string) (TemplateState, error) {
	return c.next.TemplateState(ctx, name)
}

// SaveTemplate writes through and drops the cached copy.
func (c *CachedTemplateStore) SaveTemplate(ctx context.Context, t Template) (Template, error) {
	saved, err := c.next.SaveTemplate(ctx, t)
	if err != nil {
		return Template{}, err
	}
	c.drop(ctx, t.Name)
	return saved, nil
}

func (c *CachedTemplateStore) cached(ctx context.Context, name string) (Template, bool) {
	data, err := c.cache.Get(ctx, templateCacheKey(name))
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "template cache read failed",
			logger.NotificationType(name),
			logger.Error(err),
		)
		return Template{}, false
	}
	if len(data) == 0 {
		return Template{}, false
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, false
	}
	return t, true
}

func (c *CachedTemplateStore) drop(ctx context.Context, name string) {
	if err := c.cache.Delete(ctx, templateCacheKey(name)); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "template cache invalidation failed",
			logger.NotificationType(name),
			logger.Error(err),
		)
	}
}
