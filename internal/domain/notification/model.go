package notification

import "time"

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "Email"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "Push" // recognized filter value, no send path yet
)

// IsValidChannel checks whether a channel value is recognized.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// Status represents the delivery status of a notification.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSent    Status = "Sent"
	StatusFailed  Status = "Failed"
)

// Notification represents a persisted notification record.
//
// Exactly one of the status-coupled fields is populated at a time: SentAt is
// set iff Status is Sent, FailureReason is set iff Status is Failed, and a
// Pending record carries neither.
type Notification struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	OrderID       *int64     `json:"order_id,omitempty"`
	Channel       Channel    `json:"channel"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject,omitempty"`
	Message       string     `json:"message"`
	Template      string     `json:"template"`
	Status        Status     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RetryCount    int        `json:"retry_count"`
}

// markSent transitions the record to Sent at the given time, clearing any
// previous failure reason.
func (n *Notification) markSent(at time.Time) {
	n.Status = StatusSent
	n.SentAt = &at
	n.FailureReason = ""
}

// markFailed transitions the record to Failed with the given reason.
func (n *Notification) markFailed(reason string) {
	n.Status = StatusFailed
	n.FailureReason = reason
	n.SentAt = nil
}

// applyOutcome records a dispatch outcome on the notification.
func (n *Notification) applyOutcome(out Outcome, now time.Time) {
	if out.Sent {
		n.markSent(now)
	} else {
		n.markFailed(out.FailureReason)
	}
}

// SendEmailRequest is the API request payload for sending an email
// notification. Field rules mirror the validation gate in front of the
// lifecycle engine.
type SendEmailRequest struct {
	UserID   int64  `json:"user_id" binding:"required,gt=0"`
	OrderID  int64  `json:"order_id" binding:"omitempty,gt=0"`
	EmailTo  string `json:"email_to" binding:"required,email,max=255"`
	Subject  string `json:"subject" binding:"required,max=255"`
	Body     string `json:"body" binding:"required,max=10000"`
	Template string `json:"template" binding:"required,max=100"`
}

// SendSMSRequest is the API request payload for sending an SMS notification.
// The phone number format is checked separately against the international
// +<10-15 digits> pattern.
type SendSMSRequest struct {
	UserID      int64  `json:"user_id" binding:"required,gt=0"`
	PhoneNumber string `json:"phone_number" binding:"required,max=20"`
	Message     string `json:"message" binding:"required,max=160"`
	Template    string `json:"template" binding:"required,max=100"`
}

// HistoryFilter defines the filtering and pagination options for the
// notification history query. Page and PageSize are normalized by the
// service: non-positive values fall back to 1 and 20, and PageSize is
// silently capped at 100.
type HistoryFilter struct {
	UserID   int64
	Channel  Channel // empty means all channels
	Page     int
	PageSize int
}

// Offset returns the number of records to skip for the current page.
// The filter must already be normalized.
func (f HistoryFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Normalize applies pagination defaults: page 1 when non-positive, page size
// 20 when non-positive, capped at 100.
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// HistoryPage wraps a paginated slice of notification history.
type HistoryPage struct {
	Notifications []*Notification `json:"notifications"`
	TotalCount    int             `json:"total_count"`
	PageNumber    int             `json:"page_number"`
	PageSize      int             `json:"page_size"`
}
