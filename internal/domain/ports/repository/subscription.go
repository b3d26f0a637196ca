package repository

import (
	"context"
	"time"

	"lms-payments/internal/domain/model"
)

// SubscriptionRepository persists subscription instances.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.UserSubscriptionPayment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UserSubscriptionPayment, error)
	// FindByGatewaySubscriptionID returns domain.ErrNotFound when no instance
	// exists yet; the webhook dispatcher uses absence to pick the
	// first-invoice path over the renewal path.
	FindByGatewaySubscriptionID(ctx context.Context, tx Tx, gatewaySubID string) (*model.UserSubscriptionPayment, error)
	// UpdateStatusIfActive flips ACTIVE to the given terminal status, records
	// the cancellation time and disables auto-renew, and reports whether a
	// row was affected. Zero rows means the subscription already reached a
	// terminal state; CANCELED and REFUNDED stay mutually exclusive because
	// both flips require ACTIVE.
	UpdateStatusIfActive(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus, canceledAt time.Time) (bool, error)
	// ExtendPeriod moves the period end forward after a successful renewal.
	ExtendPeriod(ctx context.Context, tx Tx, id string, periodEnd time.Time, gatewayInvoiceID string) error
	SetGatewayRefundID(ctx context.Context, tx Tx, id string, refundID string) error
}
