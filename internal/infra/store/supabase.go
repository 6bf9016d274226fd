package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"notihub/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const tableName = "notifications"

var _ notification.Store = (*SupabaseStore)(nil)

// SupabaseStore implements notification.Store using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed notification store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// supabaseRow is the internal representation for Supabase PostgREST
// insert/update. The id column is a bigserial assigned by the database.
type supabaseRow struct {
	ID            int64   `json:"id,omitempty"`
	UserID        int64   `json:"user_id"`
	OrderID       *int64  `json:"order_id,omitempty"`
	Channel       string  `json:"channel"`
	Recipient     string  `json:"recipient"`
	Subject       *string `json:"subject,omitempty"`
	Message       string  `json:"message"`
	Template      string  `json:"template"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason,omitempty"`
	SentAt        *string `json:"sent_at,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	RetryCount    int     `json:"retry_count"`
}

// Create inserts a new notification record and assigns its ID.
func (s *SupabaseStore) Create(ctx context.Context, n *notification.Notification) error {
	row := toRow(n)
	row.ID = 0 // let the database assign it

	data, _, err := s.client.From(tableName).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	var results []supabaseRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		n.ID = results[0].ID
		if t, ok := parseTime(results[0].CreatedAt); ok {
			n.CreatedAt = t
		}
	}

	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil when absent.
func (s *SupabaseStore) GetByID(ctx context.Context, id int64) (*notification.Notification, error) {
	data, _, err := s.client.From(tableName).
		Select("*", "exact", false).
		Eq("id", strconv.FormatInt(id, 10)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rowToNotification(&rows[0]), nil
}

// Update replaces the stored record identified by n.ID.
func (s *SupabaseStore) Update(ctx context.Context, n *notification.Notification) error {
	update := map[string]any{
		"status":      string(n.Status),
		"retry_count": n.RetryCount,
	}

	if n.FailureReason != "" {
		update["failure_reason"] = n.FailureReason
	} else {
		update["failure_reason"] = nil
	}

	if n.SentAt != nil {
		update["sent_at"] = n.SentAt.UTC().Format(time.RFC3339Nano)
	} else {
		update["sent_at"] = nil
	}

	_, _, err := s.client.From(tableName).
		Update(update, "", "").
		Eq("id", strconv.FormatInt(n.ID, 10)).
		Execute()
	if err != nil {
		return fmt.Errorf("updating notification: %w", err)
	}

	return nil
}

// List retrieves notifications matching the filter, newest first, along with
// the exact total of matching records.
func (s *SupabaseStore) List(ctx context.Context, filter notification.HistoryFilter) ([]*notification.Notification, int, error) {
	query := s.client.From(tableName).
		Select("*", "exact", false).
		Eq("user_id", strconv.FormatInt(filter.UserID, 10))

	if filter.Channel != "" {
		query = query.Eq("channel", string(filter.Channel))
	}

	offset := filter.Offset()
	query = query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing notification list: %w", err)
	}

	items := make([]*notification.Notification, len(rows))
	for i := range rows {
		items[i] = rowToNotification(&rows[i])
	}

	return items, int(count), nil
}

// ListStalePending retrieves up to limit Pending records created before the
// cutoff, oldest first.
func (s *SupabaseStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	data, _, err := s.client.From(tableName).
		Select("*", "exact", false).
		Eq("status", string(notification.StatusPending)).
		Lt("created_at", before.UTC().Format(time.RFC3339Nano)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale notifications: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stale notifications: %w", err)
	}

	items := make([]*notification.Notification, len(rows))
	for i := range rows {
		items[i] = rowToNotification(&rows[i])
	}

	return items, nil
}

// toRow converts a notification to its PostgREST row shape.
func toRow(n *notification.Notification) supabaseRow {
	row := supabaseRow{
		ID:         n.ID,
		UserID:     n.UserID,
		OrderID:    n.OrderID,
		Channel:    string(n.Channel),
		Recipient:  n.Recipient,
		Message:    n.Message,
		Template:   n.Template,
		Status:     string(n.Status),
		RetryCount: n.RetryCount,
	}

	if n.Subject != "" {
		row.Subject = &n.Subject
	}
	if n.FailureReason != "" {
		row.FailureReason = &n.FailureReason
	}
	if n.SentAt != nil {
		sentAt := n.SentAt.UTC().Format(time.RFC3339Nano)
		row.SentAt = &sentAt
	}
	if !n.CreatedAt.IsZero() {
		row.CreatedAt = n.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	return row
}

// rowToNotification converts a PostgREST row to a notification.
func rowToNotification(row *supabaseRow) *notification.Notification {
	n := &notification.Notification{
		ID:         row.ID,
		UserID:     row.UserID,
		OrderID:    row.OrderID,
		Channel:    notification.Channel(row.Channel),
		Recipient:  row.Recipient,
		Message:    row.Message,
		Template:   row.Template,
		Status:     notification.Status(row.Status),
		RetryCount: row.RetryCount,
	}

	if row.Subject != nil {
		n.Subject = *row.Subject
	}
	if row.FailureReason != nil {
		n.FailureReason = *row.FailureReason
	}
	if row.SentAt != nil {
		if t, ok := parseTime(*row.SentAt); ok {
			n.SentAt = &t
		}
	}
	if t, ok := parseTime(row.CreatedAt); ok {
		n.CreatedAt = t
	}

	return n
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
