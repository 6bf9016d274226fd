package notification

import (
	"context"
	"time"
)

// Store defines the contract for persisting notification records.
// Implementations live in infra/store/ (Supabase for production, an
// in-memory store for development and tests).
type Store interface {
	// Create inserts a new notification record and assigns its ID.
	Create(ctx context.Context, n *Notification) error

	// GetByID retrieves a notification by its ID.
	// Returns nil, nil if no record is found.
	GetByID(ctx context.Context, id int64) (*Notification, error)

	// Update replaces the stored record identified by n.ID.
	Update(ctx context.Context, n *Notification) error

	// List retrieves notifications matching the filter, ordered by creation
	// time descending (ties broken by id descending), along with the total
	// number of matching records before pagination. The filter must be
	// normalized.
	List(ctx context.Context, filter HistoryFilter) ([]*Notification, int, error)

	// ListStalePending retrieves up to limit Pending records created before
	// the given cutoff, oldest first. Used by the sweeper to retry sends
	// that never resolved.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Notification, error)
}
