package notification_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notihub/internal/common"
	"notihub/internal/domain/notification"
	"notihub/internal/infra/store"
)

// newService builds a service over a fresh in-memory store with no
// artificial latency and the given failure chance for every operation.
func newService(failurePercent int) (*notification.Service, *store.MemoryStore) {
	st := store.NewMemoryStore()
	sim := notification.NewSimulator(notification.DispatchPolicy{
		EmailFailurePercent:  failurePercent,
		SMSFailurePercent:    failurePercent,
		ResendFailurePercent: failurePercent,
	}, nil)
	return notification.NewService(st, sim, nil), st
}

// serviceOver builds a service with the given failure chance over an
// existing store, so tests can flip outcomes between calls.
func serviceOver(st *store.MemoryStore, failurePercent int) *notification.Service {
	sim := notification.NewSimulator(notification.DispatchPolicy{
		EmailFailurePercent:  failurePercent,
		SMSFailurePercent:    failurePercent,
		ResendFailurePercent: failurePercent,
	}, nil)
	return notification.NewService(st, sim, nil)
}

// requireInvariants asserts the status/field coupling that must hold after
// every operation.
func requireInvariants(t *testing.T, n *notification.Notification) {
	t.Helper()

	switch n.Status {
	case notification.StatusSent:
		require.NotNil(t, n.SentAt, "Sent record must carry sent_at")
		require.Empty(t, n.FailureReason, "Sent record must not carry a failure reason")
	case notification.StatusFailed:
		require.NotEmpty(t, n.FailureReason, "Failed record must carry a failure reason")
		require.Nil(t, n.SentAt, "Failed record must not carry sent_at")
	case notification.StatusPending:
		require.Nil(t, n.SentAt)
		require.Empty(t, n.FailureReason)
	default:
		t.Fatalf("invalid status %q", n.Status)
	}

	require.False(t, n.CreatedAt.IsZero())
	require.GreaterOrEqual(t, n.RetryCount, 0)
}

func emailReq(userID int64) *notification.SendEmailRequest {
	return &notification.SendEmailRequest{
		UserID:   userID,
		OrderID:  1,
		EmailTo:  "a@b.com",
		Subject:  "Order Confirmation #1",
		Body:     "Your order has been confirmed.",
		Template: "OrderConfirmation",
	}
}

func smsReq(userID int64) *notification.SendSMSRequest {
	return &notification.SendSMSRequest{
		UserID:      userID,
		PhoneNumber: "+50612345678",
		Message:     "Your order has been confirmed.",
		Template:    "OrderUpdate",
	}
}

func TestService_SendEmail_Success(t *testing.T) {
	svc, _ := newService(0)

	n, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)

	assert.Equal(t, notification.ChannelEmail, n.Channel)
	assert.Equal(t, notification.StatusSent, n.Status)
	assert.Equal(t, int64(2), n.UserID)
	assert.Equal(t, "a@b.com", n.Recipient)
	assert.Equal(t, 0, n.RetryCount)
	assert.NotZero(t, n.ID)
	require.NotNil(t, n.OrderID)
	assert.Equal(t, int64(1), *n.OrderID)
	requireInvariants(t, n)
}

func TestService_SendSMS_ForcedFailure(t *testing.T) {
	svc, _ := newService(100)

	n, err := svc.SendSMS(context.Background(), smsReq(2))
	require.NoError(t, err)

	assert.Equal(t, notification.ChannelSMS, n.Channel)
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.NotEmpty(t, n.FailureReason)
	assert.Nil(t, n.SentAt)
	assert.Equal(t, 0, n.RetryCount)
	requireInvariants(t, n)
}

func TestService_Send_PersistsFinalState(t *testing.T) {
	svc, st := newService(0)

	n, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)

	stored, err := st.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, notification.StatusSent, stored.Status)
	assert.Equal(t, n.CreatedAt, stored.CreatedAt)
}

func TestService_Resend_NotFound(t *testing.T) {
	svc, _ := newService(0)

	_, err := svc.Resend(context.Background(), 42)
	require.Error(t, err)

	var notFound *common.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_Resend_SentRecordFailsPreconditionUnchanged(t *testing.T) {
	svc, st := newService(0)

	sent, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)
	require.Equal(t, notification.StatusSent, sent.Status)

	_, err = svc.Resend(context.Background(), sent.ID)
	require.Error(t, err)

	var precondition *common.FailedPreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, precondition.Error(), "Sent")

	// The record must not have been touched.
	after, err := st.GetByID(context.Background(), sent.ID)
	require.NoError(t, err)
	assert.Equal(t, sent, after)
}

func TestService_Resend_IncrementsRetryCountOnFailure(t *testing.T) {
	svc, _ := newService(100)

	failed, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)
	require.Equal(t, notification.StatusFailed, failed.Status)

	for i := 1; i <= 3; i++ {
		n, err := svc.Resend(context.Background(), failed.ID)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusFailed, n.Status)
		assert.Equal(t, i, n.RetryCount)
		requireInvariants(t, n)
	}
}

func TestService_Resend_FailedThenSucceeds(t *testing.T) {
	st := store.NewMemoryStore()
	alwaysFail := serviceOver(st, 100)
	neverFail := serviceOver(st, 0)

	failed, err := alwaysFail.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)
	require.Equal(t, notification.StatusFailed, failed.Status)

	// First resend fails, second succeeds.
	first, err := alwaysFail.Resend(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, first.Status)
	assert.Equal(t, 1, first.RetryCount)

	second, err := neverFail.Resend(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, second.Status)
	assert.Equal(t, 2, second.RetryCount)
	assert.NotNil(t, second.SentAt)
	assert.Empty(t, second.FailureReason)
	requireInvariants(t, second)
}

func TestService_Resend_ClearsFailureReasonOnSuccess(t *testing.T) {
	st := store.NewMemoryStore()
	alwaysFail := serviceOver(st, 100)
	neverFail := serviceOver(st, 0)

	failed, err := alwaysFail.SendSMS(context.Background(), smsReq(2))
	require.NoError(t, err)
	require.NotEmpty(t, failed.FailureReason)

	resent, err := neverFail.Resend(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, resent.Status)
	assert.Empty(t, resent.FailureReason)
	requireInvariants(t, resent)
}

func TestService_Resend_ConcurrentRetriesAllCounted(t *testing.T) {
	svc, st := newService(100)

	failed, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)

	const resends = 16
	var wg sync.WaitGroup
	for range resends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resend(context.Background(), failed.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	after, err := st.GetByID(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, resends, after.RetryCount)
}

func TestService_GetByID(t *testing.T) {
	svc, _ := newService(0)

	n, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got)

	_, err = svc.GetByID(context.Background(), n.ID+100)
	var notFound *common.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_ListHistory_Defaults(t *testing.T) {
	svc, _ := newService(0)

	for i := 0; i < 25; i++ {
		_, err := svc.SendEmail(context.Background(), emailReq(3))
		require.NoError(t, err)
	}

	// Non-positive page size falls back to 20.
	page, err := svc.ListHistory(context.Background(), notification.HistoryFilter{UserID: 3})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 20)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 20, page.PageSize)

	// Second page holds the remainder.
	page, err = svc.ListHistory(context.Background(), notification.HistoryFilter{UserID: 3, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 5)
	assert.Equal(t, 25, page.TotalCount)
}

func TestService_ListHistory_PageSizeCapped(t *testing.T) {
	svc, _ := newService(0)

	_, err := svc.SendEmail(context.Background(), emailReq(3))
	require.NoError(t, err)

	page, err := svc.ListHistory(context.Background(), notification.HistoryFilter{
		UserID:   3,
		PageSize: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
}

func TestService_ListHistory_ChannelFilter(t *testing.T) {
	svc, _ := newService(0)

	first, err := svc.SendEmail(context.Background(), emailReq(3))
	require.NoError(t, err)
	second, err := svc.SendEmail(context.Background(), emailReq(3))
	require.NoError(t, err)
	_, err = svc.SendSMS(context.Background(), smsReq(3))
	require.NoError(t, err)

	page, err := svc.ListHistory(context.Background(), notification.HistoryFilter{
		UserID:   3,
		Channel:  notification.ChannelEmail,
		Page:     1,
		PageSize: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Notifications, 1)
	newest := page.Notifications[0]
	assert.Equal(t, notification.ChannelEmail, newest.Channel)
	// Newest Email record first; id breaks the tie for equal timestamps.
	assert.True(t, newest.ID == second.ID || newest.CreatedAt.After(first.CreatedAt))
}

func TestService_ListHistory_OtherUsersExcluded(t *testing.T) {
	svc, _ := newService(0)

	_, err := svc.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)
	_, err = svc.SendEmail(context.Background(), emailReq(3))
	require.NoError(t, err)

	page, err := svc.ListHistory(context.Background(), notification.HistoryFilter{UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	for _, n := range page.Notifications {
		assert.Equal(t, int64(2), n.UserID)
	}
}

func TestService_InvariantsUnderRandomSequences(t *testing.T) {
	svc, st := newService(50)

	ctx := context.Background()
	var ids []int64

	for i := 0; i < 60; i++ {
		var n *notification.Notification
		var err error
		switch i % 3 {
		case 0:
			n, err = svc.SendEmail(ctx, emailReq(int64(i%4+1)))
		case 1:
			n, err = svc.SendSMS(ctx, smsReq(int64(i%4+1)))
		default:
			// Resend a previously created record; precondition failures on
			// Sent records are expected and must leave the record intact.
			id := ids[i%len(ids)]
			n, err = svc.Resend(ctx, id)
			var precondition *common.FailedPreconditionError
			if err != nil && assert.ErrorAs(t, err, &precondition) {
				n, err = svc.GetByID(ctx, id)
			}
		}
		require.NoError(t, err)
		requireInvariants(t, n)
		ids = append(ids, n.ID)
	}

	// Invariants also hold for every stored record.
	for _, id := range ids {
		stored, err := st.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, stored)
		requireInvariants(t, stored)
	}
}

type quotaStub struct {
	allowed bool
	err     error
}

func (q quotaStub) Allow(ctx context.Context, recipient string) (bool, error) {
	return q.allowed, q.err
}

func TestService_RecipientQuota(t *testing.T) {
	st := store.NewMemoryStore()
	sim := notification.NewSimulator(notification.DispatchPolicy{}, nil)

	denied := notification.NewService(st, sim, quotaStub{allowed: false})
	_, err := denied.SendEmail(context.Background(), emailReq(2))
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)

	// A limiter failure must not block the send.
	failOpen := notification.NewService(st, sim, quotaStub{err: fmt.Errorf("redis down")})
	n, err := failOpen.SendEmail(context.Background(), emailReq(2))
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, n.Status)
}

func TestSweeper_RetriesStalePending(t *testing.T) {
	st := store.NewMemoryStore()
	svc := serviceOver(st, 0)

	stale := &notification.Notification{
		UserID:    2,
		Channel:   notification.ChannelEmail,
		Recipient: "juan.perez@email.com",
		Subject:   "Order Confirmation #3",
		Message:   "Pending payment confirmation.",
		Template:  "OrderConfirmation",
		Status:    notification.StatusPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, st.Create(context.Background(), stale))

	fresh := &notification.Notification{
		UserID:    2,
		Channel:   notification.ChannelEmail,
		Recipient: "juan.perez@email.com",
		Message:   "Just created.",
		Template:  "OrderConfirmation",
		Status:    notification.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Create(context.Background(), fresh))

	sweeper := notification.NewSweeper(st, svc, notification.SweeperConfig{
		StaleThreshold: time.Hour,
		BatchSize:      10,
	})
	sweeper.Sweep(context.Background())

	swept, err := st.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, swept.Status)
	assert.Equal(t, 1, swept.RetryCount)

	// Records inside the threshold stay untouched.
	untouched, err := st.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusPending, untouched.Status)
	assert.Equal(t, 0, untouched.RetryCount)
}
