package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"notihub/internal/common"
)

// RecipientRateLimiter defines the contract for per-recipient send quotas.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow checks whether a notification can be sent to the given recipient.
	Allow(ctx context.Context, recipient string) (bool, error)
}

// Service orchestrates the notification lifecycle: it turns validated send
// requests into records, drives Pending/Sent/Failed transitions through the
// dispatch simulator, and enforces the resend precondition.
type Service struct {
	store       Store
	sim         *Simulator
	rateLimiter RecipientRateLimiter
	now         func() time.Time

	// resendLocks serializes the read-modify-write of each notification so
	// two concurrent resends on the same id cannot lose a retry count
	// increment.
	resendLocks sync.Map // int64 -> *sync.Mutex
}

// NewService creates a new notification service. rateLimiter may be nil to
// disable per-recipient quotas.
func NewService(store Store, sim *Simulator, rateLimiter RecipientRateLimiter) *Service {
	return &Service{
		store:       store,
		sim:         sim,
		rateLimiter: rateLimiter,
		now:         time.Now,
	}
}

// SendEmail creates an Email notification, performs one simulated dispatch,
// and persists the resolved record. The request is assumed to have passed
// the validation gate.
func (s *Service) SendEmail(ctx context.Context, req *SendEmailRequest) (*Notification, error) {
	n := &Notification{
		UserID:    req.UserID,
		Channel:   ChannelEmail,
		Recipient: req.EmailTo,
		Subject:   req.Subject,
		Message:   req.Body,
		Template:  req.Template,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if req.OrderID > 0 {
		orderID := req.OrderID
		n.OrderID = &orderID
	}

	return s.dispatchAndCreate(ctx, n)
}

// SendSMS creates an SMS notification, performs one simulated dispatch, and
// persists the resolved record.
func (s *Service) SendSMS(ctx context.Context, req *SendSMSRequest) (*Notification, error) {
	n := &Notification{
		UserID:    req.UserID,
		Channel:   ChannelSMS,
		Recipient: req.PhoneNumber,
		Message:   req.Message,
		Template:  req.Template,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	}

	return s.dispatchAndCreate(ctx, n)
}

// dispatchAndCreate runs the shared initial-send path: one simulator call,
// then a single insert reflecting the final state. Pending never becomes
// durable on this path.
func (s *Service) dispatchAndCreate(ctx context.Context, n *Notification) (*Notification, error) {
	if err := s.checkRecipientQuota(ctx, n.Recipient); err != nil {
		return nil, err
	}

	out, err := s.sim.Attempt(ctx, n.Channel, OpInitialSend)
	if err != nil {
		return nil, fmt.Errorf("dispatching %s notification: %w", n.Channel, err)
	}
	n.applyOutcome(out, s.now().UTC())

	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("creating notification record: %w", err)
	}

	if n.Status == StatusSent {
		slog.Info("notification sent",
			"id", n.ID,
			"channel", n.Channel,
			"to", n.Recipient,
			"template", n.Template,
		)
	} else {
		slog.Warn("notification delivery failed",
			"id", n.ID,
			"channel", n.Channel,
			"to", n.Recipient,
			"reason", n.FailureReason,
		)
	}

	return n, nil
}

// Resend retries delivery of an existing notification. Only Failed and
// Pending records may be resent; the retry count goes up by one whether or
// not the attempt succeeds.
func (s *Service) Resend(ctx context.Context, id int64) (*Notification, error) {
	unlock := s.lockID(id)
	defer unlock()

	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching notification %d: %w", id, err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", id)
	}

	switch n.Status {
	case StatusFailed, StatusPending:
		// resendable
	case StatusSent:
		return nil, common.NewFailedPreconditionError(fmt.Sprintf(
			"only Failed or Pending notifications can be resent; current status: %s", n.Status))
	default:
		return nil, fmt.Errorf("notification %d has invalid status %q", id, n.Status)
	}

	out, err := s.sim.Attempt(ctx, n.Channel, OpResend)
	if err != nil {
		return nil, fmt.Errorf("redispatching notification %d: %w", id, err)
	}

	n.RetryCount++
	n.applyOutcome(out, s.now().UTC())

	if err := s.store.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("updating notification %d: %w", id, err)
	}

	if n.Status == StatusSent {
		slog.Info("notification resent",
			"id", n.ID,
			"channel", n.Channel,
			"retry_count", n.RetryCount,
		)
	} else {
		slog.Warn("notification resend failed",
			"id", n.ID,
			"channel", n.Channel,
			"retry_count", n.RetryCount,
			"reason", n.FailureReason,
		)
	}

	return n, nil
}

// GetByID retrieves a notification record. Read-only.
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching notification %d: %w", id, err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", id)
	}
	return n, nil
}

// ListHistory returns a page of a user's notification history, newest first,
// optionally restricted to one channel.
func (s *Service) ListHistory(ctx context.Context, filter HistoryFilter) (*HistoryPage, error) {
	filter = filter.Normalize()

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for user %d: %w", filter.UserID, err)
	}

	return &HistoryPage{
		Notifications: items,
		TotalCount:    total,
		PageNumber:    filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}

// checkRecipientQuota enforces the per-recipient send quota when configured.
// A limiter error fails open so a Redis outage cannot block sends.
func (s *Service) checkRecipientQuota(ctx context.Context, recipient string) error {
	if s.rateLimiter == nil {
		return nil
	}
	allowed, err := s.rateLimiter.Allow(ctx, recipient)
	if err != nil {
		slog.Error("recipient quota check failed, proceeding without limit",
			"recipient", recipient,
			"error", err,
		)
		return nil
	}
	if !allowed {
		return common.NewValidationError(fmt.Sprintf("send quota exceeded for recipient: %s", recipient))
	}
	return nil
}

// lockID acquires the per-notification mutex and returns its release func.
func (s *Service) lockID(id int64) func() {
	v, _ := s.resendLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
