package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notihub/internal/domain/notification"
)

// Seed loads a demo notification set into an empty store: delivered order
// and payment mails, a stuck Pending confirmation, and a Failed record with
// retry history. Intended for development mode only.
func Seed(ctx context.Context, s notification.Store) error {
	existing, err := s.GetByID(ctx, 1)
	if err != nil {
		return fmt.Errorf("checking for existing records: %w", err)
	}
	if existing != nil {
		slog.Info("store already contains notifications, skipping seed")
		return nil
	}

	now := time.Now().UTC()
	orderOne := int64(1)
	orderTwo := int64(2)
	orderThree := int64(3)
	orderFour := int64(4)

	sentAt := func(t time.Time) *time.Time { return &t }

	records := []*notification.Notification{
		{
			UserID:    2,
			OrderID:   &orderOne,
			Channel:   notification.ChannelEmail,
			Recipient: "juan.perez@email.com",
			Subject:   "Order Confirmation #1",
			Message:   "Your order has been confirmed and is being processed. Total: $1,499.98",
			Template:  "OrderConfirmation",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -5)),
			CreatedAt: now.AddDate(0, 0, -5),
		},
		{
			UserID:    2,
			OrderID:   &orderOne,
			Channel:   notification.ChannelEmail,
			Recipient: "juan.perez@email.com",
			Subject:   "Payment Successful - Order #1",
			Message:   "Your payment of $1,499.98 has been processed successfully. Transaction ID: TXN-20241120-001",
			Template:  "PaymentSuccess",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -5).Add(2 * time.Minute)),
			CreatedAt: now.AddDate(0, 0, -5).Add(2 * time.Minute),
		},
		{
			UserID:    2,
			OrderID:   &orderOne,
			Channel:   notification.ChannelSMS,
			Recipient: "+50612345678",
			Message:   "Your order #1 has been confirmed. Total: $1499.98",
			Template:  "OrderUpdate",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -5).Add(3 * time.Minute)),
			CreatedAt: now.AddDate(0, 0, -5).Add(3 * time.Minute),
		},
		{
			UserID:    3,
			OrderID:   &orderTwo,
			Channel:   notification.ChannelEmail,
			Recipient: "maria.gonzalez@email.com",
			Subject:   "Order Confirmation #2",
			Message:   "Your order has been confirmed. Total: $989.97. Expected delivery in 3-5 business days.",
			Template:  "OrderConfirmation",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -2)),
			CreatedAt: now.AddDate(0, 0, -2),
		},
		{
			UserID:    3,
			OrderID:   &orderTwo,
			Channel:   notification.ChannelEmail,
			Recipient: "maria.gonzalez@email.com",
			Subject:   "Shipping Update - Order #2",
			Message:   "Your order #2 has been shipped! Tracking number: TRACK123456",
			Template:  "ShippingUpdate",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -1)),
			CreatedAt: now.AddDate(0, 0, -1),
		},
		{
			UserID:    1,
			OrderID:   &orderFour,
			Channel:   notification.ChannelEmail,
			Recipient: "admin@ecommerce.com",
			Subject:   "Payment Failed - Order #4",
			Message:   "We were unable to process your payment. Reason: Insufficient funds. Please update your payment method.",
			Template:  "PaymentFailed",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -10)),
			CreatedAt: now.AddDate(0, 0, -10),
		},
		{
			UserID:    2,
			OrderID:   &orderThree,
			Channel:   notification.ChannelEmail,
			Recipient: "juan.perez@email.com",
			Subject:   "Order Confirmation #3",
			Message:   "Your order has been received and is pending payment confirmation.",
			Template:  "OrderConfirmation",
			Status:    notification.StatusPending,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			UserID:        3,
			OrderID:       &orderTwo,
			Channel:       notification.ChannelEmail,
			Recipient:     "invalid-email@",
			Subject:       "Test Failed Notification",
			Message:       "This notification failed to send",
			Template:      "OrderConfirmation",
			Status:        notification.StatusFailed,
			FailureReason: "Invalid email address format",
			CreatedAt:     now.Add(-3 * time.Hour),
			RetryCount:    2,
		},
		{
			UserID:    2,
			OrderID:   &orderOne,
			Channel:   notification.ChannelSMS,
			Recipient: "+50612345678",
			Message:   "Your order #1 has been delivered. Thank you for your purchase!",
			Template:  "DeliveryNotification",
			Status:    notification.StatusSent,
			SentAt:    sentAt(now.AddDate(0, 0, -3)),
			CreatedAt: now.AddDate(0, 0, -3),
		},
	}

	for _, n := range records {
		if err := s.Create(ctx, n); err != nil {
			return fmt.Errorf("seeding notification for user %d: %w", n.UserID, err)
		}
	}

	slog.Info("seeded demo notifications", "count", len(records))
	return nil
}
