package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/notifications"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.data[key], nil
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = val
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type mockTemplateStore struct {
	mock.Mock
}

func (m *mockTemplateStore) GetTemplate(ctx context.Context, name string) (notifications.Template, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(notifications.Template), args.Error(1)
}

func (m *mockTemplateStore) TemplateState(ctx context.Context, name string) (notifications.TemplateState, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(notifications.TemplateState), args.Error(1)
}

func (m *mockTemplateStore) SaveTemplate(ctx context.Context, t notifications.Template) (notifications.Template, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(notifications.Template), args.Error(1)
}

func TestCachedTemplateStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tmpl := leaveApprovedTemplate()
	tmpl.ID = 11
	tmpl.UpdatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := notifications.TemplateState{Enabled: true, UpdatedAt: tmpl.UpdatedAt}

	t.Run("content is served from cache while state matches", func(t *testing.T) {
		t.Parallel()

		next := new(mockTemplateStore)
		defer next.AssertExpectations(t)
		next.On("TemplateState", mock.Anything, "leave_approved").Return(current, nil).Times(3)
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(tmpl, nil).Once()

		store := notifications.NewCachedTemplateStore(next, newMemoryCache(), time.Minute, discardLogger())
		for range 3 {
			got, err := store.GetTemplate(ctx, "leave_approved")
			require.NoError(t, err)
			assert.Equal(t, tmpl.ID, got.ID)
			assert.Equal(t, tmpl.BodyTemplate, got.BodyTemplate)
			assert.True(t, got.Enabled)
		}
	})

	t.Run("enabled flag always comes from the store", func(t *testing.T) {
		t.Parallel()

		next := new(mockTemplateStore)
		defer next.AssertExpectations(t)
		next.On("TemplateState", mock.Anything, "leave_approved").Return(current, nil).Once()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(tmpl, nil).Once()
		next.On("TemplateState", mock.Anything, "leave_approved").
			Return(notifications.TemplateState{Enabled: false, UpdatedAt: tmpl.UpdatedAt}, nil).Once()

		store := notifications.NewCachedTemplateStore(next, newMemoryCache(), time.Minute, discardLogger())
		_, err := notifications.ResolveTemplate(ctx, store, "leave_approved")
		require.NoError(t, err)

		_, err = notifications.ResolveTemplate(ctx, store, "leave_approved")
		assert.ErrorIs(t, err, notifications.ErrTemplateUnavailable)
	})

	t.Run("newer store copy replaces cached content", func(t *testing.T) {
		t.Parallel()

		edited := tmpl
		edited.BodyTemplate = "Your {leave_type} leave is confirmed."
		edited.UpdatedAt = tmpl.UpdatedAt.Add(time.Minute)

		next := new(mockTemplateStore)
		defer next.AssertExpectations(t)
		next.On("TemplateState", mock.Anything, "leave_approved").Return(current, nil).Once()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(tmpl, nil).Once()
		next.On("TemplateState", mock.Anything, "leave_approved").
			Return(notifications.TemplateState{Enabled: true, UpdatedAt: edited.UpdatedAt}, nil).Once()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(edited, nil).Once()

		store := notifications.NewCachedTemplateStore(next, newMemoryCache(), time.Minute, discardLogger())
		_, err := store.GetTemplate(ctx, "leave_approved")
		require.NoError(t, err)

		got, err := store.GetTemplate(ctx, "leave_approved")
		require.NoError(t, err)
		assert.Equal(t, edited.BodyTemplate, got.BodyTemplate)
	})

	t.Run("save invalidates", func(t *testing.T) {
		t.Parallel()

		updated := tmpl
		updated.Enabled = false
		updated.UpdatedAt = tmpl.UpdatedAt.Add(time.Second)

		next := new(mockTemplateStore)
		defer next.AssertExpectations(t)
		next.On("TemplateState", mock.Anything, "leave_approved").Return(current, nil).Once()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(tmpl, nil).Once()
		next.On("SaveTemplate", mock.Anything, updated).Return(updated, nil).Once()
		next.On("TemplateState", mock.Anything, "leave_approved").
			Return(notifications.TemplateState{Enabled: false, UpdatedAt: updated.UpdatedAt}, nil).Once()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(updated, nil).Once()

		store := notifications.NewCachedTemplateStore(next, newMemoryCache(), time.Minute, discardLogger())
		_, err := store.GetTemplate(ctx, "leave_approved")
		require.NoError(t, err)

		_, err = store.SaveTemplate(ctx, updated)
		require.NoError(t, err)

		_, err = notifications.ResolveTemplate(ctx, store, "leave_approved")
		assert.ErrorIs(t, err, notifications.ErrTemplateUnavailable)
	})

	t.Run("cache failure falls through", func(t *testing.T) {
		t.Parallel()

		cache := newMemoryCache()
		cache.err = errors.New("redis down")

		next := new(mockTemplateStore)
		next.On("TemplateState", mock.Anything, "leave_approved").Return(current, nil).Twice()
		next.On("GetTemplate", mock.Anything, "leave_approved").Return(tmpl, nil).Twice()

		store := notifications.NewCachedTemplateStore(next, cache, 0, discardLogger())
		for range 2 {
			_, err := store.GetTemplate(ctx, "leave_approved")
			require.NoError(t, err)
		}
		next.AssertExpectations(t)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		t.Parallel()

		next := new(mockTemplateStore)
		next.On("TemplateState", mock.Anything, "nope").
			Return(notifications.TemplateState{}, notifications.ErrTemplateNotFound).Twice()

		store := notifications.NewCachedTemplateStore(next, newMemoryCache(), time.Minute, discardLogger())
		for range 2 {
			_, err := store.GetTemplate(ctx, "nope")
			assert.ErrorIs(t, err, notifications.ErrTemplateNotFound)
		}
		next.AssertExpectations(t)
		next.AssertNotCalled(t, "GetTemplate", mock.Anything, "nope")
	})
}

func TestCachedTemplateStoreDisabledOutOfBand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	cached := notifications.NewCachedTemplateStore(f.storage, newMemoryCache(), time.Hour, discardLogger())
	f.service = notifications.NewService(f.storage, f.directory,
		notifications.WithLogger(discardLogger()),
		notifications.WithTemplateStore(cached),
	)

	tmpl := f.saveTemplate(t, leaveApprovedTemplate())
	f.directory.SetContact(42, notifications.Contact{Email: "jane@example.com", FullName: "Jane Doe"})

	n, err := f.service.Queue(ctx, 42, "leave_approved", leavePayload())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Disabled directly in storage, bypassing the cache.
	tmpl.Enabled = false
	f.saveTemplate(t, tmpl)

	n, err = f.service.Queue(ctx, 42, "leave_approved", leavePayload())
	assert.ErrorIs(t, err, notifications.ErrTemplateUnavailable)
	assert.Zero(t, n)
	assert.Len(t, f.storage.Items(42), 1)
}
