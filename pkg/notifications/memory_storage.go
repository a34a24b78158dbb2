package notifications

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type preferenceKey struct {
	userID int64
	typ    string
}

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	mu sync.RWMutex

	templates      map[string]Template
	nextTemplateID int64
	preferences    map[preferenceKey]Preference
	devices        map[string]Device // token -> device
	items          map[uuid.UUID]QueueItem
	logs           map[uuid.UUID]DeliveryLog // queue item id -> log
	inbox          map[int64][]InboxEntry    // user id -> entries
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		templates:   make(map[string]Template),
		preferences: make(map[preferenceKey]Preference),
		devices:     make(map[string]Device),
		items:       make(map[uuid.UUID]QueueItem),
		logs:        make(map[uuid.UUID]DeliveryLog),
		inbox:       make(map[int64][]InboxEntry),
	}
}

func (s *MemoryStorage) GetTemplate(_ context.Context, name string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[name]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return t, nil
}

func (s *MemoryStorage) TemplateState(_ context.Context, name string) (TemplateState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[name]
	if !ok {
		return TemplateState{}, ErrTemplateNotFound
	}
	return TemplateState{Enabled: t.Enabled, UpdatedAt: t.UpdatedAt}, nil
}

func (s *MemoryStorage) SaveTemplate(_ context.Context, t Template) (Template, error) {
	if err := t.Validate(); err != nil {
		return Template{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.templates[t.Name]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		s.nextTemplateID++
		t.ID = s.nextTemplateID
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.templates[t.Name] = t
	return t, nil
}

func (s *MemoryStorage) GetPreference(_ context.Context, userID int64, notificationType string) (Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[preferenceKey{userID, notificationType}]
	if !ok {
		return Preference{}, ErrPreferenceNotFound
	}
	p.Channels = slices.Clone(p.Channels)
	return p, nil
}

func (s *MemoryStorage) SavePreference(_ context.Context, p Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Channels = slices.Clone(p.Channels)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	s.preferences[preferenceKey{p.UserID, p.NotificationType}] = p
	return nil
}

func (s *MemoryStorage) ListPreferences(_ context.Context, userID int64) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Preference{}
	for k, p := range s.preferences {
		if k.userID == userID {
			p.Channels = slices.Clone(p.Channels)
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NotificationType < result[j].NotificationType
	})
	return result, nil
}

func (s *MemoryStorage) UpsertDevice(_ context.Context, d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.devices[d.Token]; ok {
		d.CreatedAt = existing.CreatedAt
	}
	s.devices[d.Token] = d
	return nil
}

func (s *MemoryStorage) DeactivateDevice(_ context.Context, token string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[token]
	if !ok {
		return false, nil
	}
	d.Active = false
	d.LastUsedAt = at
	s.devices[token] = d
	return true, nil
}

func (s *MemoryStorage) ActiveDevices(_ context.Context, userID int64) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Device{}
	for _, d := range s.devices {
		if d.UserID == userID && d.Active {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastUsedAt.After(result[j].LastUsedAt)
	})
	return result, nil
}

// Devices returns every registration row for the user, active or not.
func (s *MemoryStorage) Devices(userID int64) []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Device
	for _, d := range s.devices {
		if d.UserID == userID {
			result = append(result, d)
		}
	}
	return result
}

func (s *MemoryStorage) Enqueue(_ context.Context, item QueueItem, log DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return ErrInvalidTransition
	}
	s.items[item.ID] = item
	s.logs[item.ID] = log
	return nil
}

func (s *MemoryStorage) ListDue(_ context.Context, now time.Time, limit int) ([]QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []QueueItem
	for _, it := range s.items {
		if it.Status == StatusPending && !it.ScheduledAt.After(now) {
			due = append(due, it)
		}
	}
	sortDue(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// sortDue orders by priority DESC, scheduled_at ASC, created_at ASC.
func sortDue(items []QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (s *MemoryStorage) Reserve(_ context.Context, id uuid.UUID, now time.Time) (QueueItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok || it.Status != StatusPending {
		return QueueItem{}, false, nil
	}
	it.Status = StatusProcessing
	it.Attempts++
	it.ReservedAt = &now
	it.UpdatedAt = now
	s.items[id] = it
	s.touchLog(id, StatusProcessing, "", now)
	return it, true, nil
}

func (s *MemoryStorage) MarkSent(_ context.Context, id uuid.UUID, at time.Time, note string) error {
	return s.finish(id, StatusSent, note, at)
}

func (s *MemoryStorage) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	return s.finish(id, StatusFailed, errMsg, at)
}

func (s *MemoryStorage) finish(id uuid.UUID, status Status, msg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if it.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	it.Status = status
	it.ErrorMessage = msg
	it.ProcessedAt = &at
	it.ReservedAt = nil
	it.UpdatedAt = at
	s.items[id] = it
	s.touchLog(id, status, msg, at)
	return nil
}

func (s *MemoryStorage) Retry(_ context.Context, id uuid.UUID, errMsg string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if it.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now()
	it.Status = StatusPending
	it.ErrorMessage = errMsg
	it.ScheduledAt = next
	it.ReservedAt = nil
	it.UpdatedAt = now
	s.items[id] = it
	s.touchLog(id, StatusPending, errMsg, now)
	return nil
}

func (s *MemoryStorage) RequeueStale(_ context.Context, reservedBefore, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, it := range s.items {
		if it.Status != StatusProcessing || it.ReservedAt == nil || !it.ReservedAt.Before(reservedBefore) {
			continue
		}
		it.ReservedAt = nil
		it.UpdatedAt = now
		it.ErrorMessage = "reservation expired"
		if it.Exhausted() {
			it.Status = StatusFailed
			it.ProcessedAt = &now
		} else {
			it.Status = StatusPending
		}
		s.items[id] = it
		s.touchLog(id, it.Status, it.ErrorMessage, now)
		n++
	}
	return n, nil
}

func (s *MemoryStorage) ListFailed(_ context.Context, opts ListOptions) ([]QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var failed []QueueItem
	for _, it := range s.items {
		if it.Status != StatusFailed || !opts.matchesType(it.NotificationType) {
			continue
		}
		if opts.Since != nil && it.UpdatedAt.Before(*opts.Since) {
			continue
		}
		failed = append(failed, it)
	}
	sort.Slice(failed, func(i, j int) bool {
		return failed[i].UpdatedAt.After(failed[j].UpdatedAt)
	})
	return paginate(failed, opts), nil
}

// Item returns the queue item by id. Used by tests and the admin API.
func (s *MemoryStorage) Item(id uuid.UUID) (QueueItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

// Items returns all queue items of the user.
func (s *MemoryStorage) Items(userID int64) []QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []QueueItem
	for _, it := range s.items {
		if it.UserID == userID {
			result = append(result, it)
		}
	}
	sortDue(result)
	return result
}

// touchLog must be called with s.mu held.
func (s *MemoryStorage) touchLog(itemID uuid.UUID, status Status, msg string, at time.Time) {
	l, ok := s.logs[itemID]
	if !ok {
		return
	}
	l.Status = status
	l.ErrorMessage = msg
	l.UpdatedAt = at
	s.logs[itemID] = l
}

func (s *MemoryStorage) ListDeliveries(_ context.Context, userID int64, opts ListOptions) ([]DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []DeliveryLog
	for _, l := range s.logs {
		if l.UserID != userID || !opts.matchesType(l.NotificationType) {
			continue
		}
		if opts.OnlyUnread && l.ReadAt != nil {
			continue
		}
		if opts.Since != nil && l.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, l)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return paginate(filtered, opts), nil
}

func (s *MemoryStorage) MarkDeliveriesRead(_ context.Context, userID int64, at time.Time, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idMap := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		idMap[id] = true
	}
	for k, l := range s.logs {
		if l.UserID == userID && idMap[l.ID] && l.ReadAt == nil {
			l.ReadAt = &at
			s.logs[k] = l
		}
	}
	return nil
}

func (s *MemoryStorage) CreateInboxEntry(_ context.Context, e InboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.inbox[e.UserID] {
		if e.QueueItemID != uuid.Nil && existing.QueueItemID == e.QueueItemID {
			return nil
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.inbox[e.UserID] = append(s.inbox[e.UserID], e)
	return nil
}

func (s *MemoryStorage) ListInbox(_ context.Context, userID int64, opts ListOptions) ([]InboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []InboxEntry
	for _, e := range s.inbox[userID] {
		if opts.OnlyUnread && e.Read() {
			continue
		}
		if !opts.matchesType(e.NotificationType) {
			continue
		}
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return paginate(filtered, opts), nil
}

func (s *MemoryStorage) MarkInboxRead(_ context.Context, userID int64, at time.Time, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idMap := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		idMap[id] = true
	}
	entries := s.inbox[userID]
	for i := range entries {
		if idMap[entries[i].ID] && entries[i].ReadAt == nil {
			entries[i].ReadAt = &at
		}
	}
	return nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.inbox[userID] {
		if !e.Read() {
			count++
		}
	}
	return count, nil
}

func paginate[T any](rows []T, opts ListOptions) []T {
	start := opts.Offset
	if start > len(rows) {
		return []T{}
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(rows) {
		end = len(rows)
	}
	if rows == nil {
		return []T{}
	}
	return rows[start:end]
}

// MemoryDirectory is a ContactDirectory backed by a map.
type MemoryDirectory struct {
	mu       sync.RWMutex
	contacts map[int64]Contact
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{contacts: make(map[int64]Contact)}
}

// SetContact stores or replaces the user's contact data.
func (d *MemoryDirectory) SetContact(userID int64, c Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[userID] = c
}

func (d *MemoryDirectory) GetUserContact(_ context.Context, userID int64) (Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[userID]
	if !ok {
		return Contact{}, ErrUserNotFound
	}
	return c, nil
}
