package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"notihub/internal/domain/notification"
)

var _ notification.Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded in-memory notification store with
// monotonically assigned ids. It backs development mode and tests; the
// production deployment uses the Supabase store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*notification.Notification
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*notification.Notification),
	}
}

// Create inserts a new notification record and assigns its ID.
func (s *MemoryStore) Create(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID

	cp := *n
	s.records[n.ID] = &cp
	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil when absent.
func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.records[id]
	if !ok {
		return nil, nil
	}

	cp := *n
	return &cp, nil
}

// Update replaces the stored record identified by n.ID.
func (s *MemoryStore) Update(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[n.ID]; !ok {
		return nil
	}

	cp := *n
	s.records[n.ID] = &cp
	return nil
}

// List retrieves notifications matching the filter, newest first, along with
// the total number of matching records.
func (s *MemoryStore) List(ctx context.Context, filter notification.HistoryFilter) ([]*notification.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*notification.Notification
	for _, n := range s.records {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.Channel != "" && n.Channel != filter.Channel {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)

	offset := filter.Offset()
	if offset >= total {
		return []*notification.Notification{}, total, nil
	}

	end := offset + filter.PageSize
	if end > total {
		end = total
	}

	return matched[offset:end], total, nil
}

// ListStalePending retrieves up to limit Pending records created before the
// cutoff, oldest first.
func (s *MemoryStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*notification.Notification
	for _, n := range s.records {
		if n.Status != notification.StatusPending || !n.CreatedAt.Before(before) {
			continue
		}
		cp := *n
		stale = append(stale, &cp)
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	return stale, nil
}
