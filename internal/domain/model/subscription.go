package model

import (
	"time"

	"lms-payments/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED" // terminal
	SubscriptionStatusRefunded SubscriptionStatus = "REFUNDED" // terminal
)

// RefundWindow is how long after the first period start a full refund may
// be requested.
const RefundWindow = 14 * 24 * time.Hour

// UserSubscriptionPayment is one subscription instance for a user-plan
// enrollment. Created on the first successful invoice payment; mutated on
// renewal (period extension), cancellation, and refund. CANCELED and
// REFUNDED are mutually exclusive terminal states.
type UserSubscriptionPayment struct {
	ID                    string // UUID
	UserID                string // UUID
	PlanID                string // UUID -> SubscriptionPlan
	TransactionID         string // UUID -> Transaction of the first invoice (unique)
	GatewaySubscriptionID string // gateway subscription id (unique)
	GatewayInvoiceID      string // latest gateway invoice id
	GatewayRefundID       string // set when refunded
	Status                SubscriptionStatus
	PeriodStart           time.Time // first period start; anchors the refund window
	PeriodEnd             time.Time // extended on each successful renewal
	AutoRenew             bool
	CanceledAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewUserSubscriptionPayment materializes an ACTIVE subscription from a
// confirmed first invoice.
func NewUserSubscriptionPayment(id, userID, planID, transactionID, gatewaySubID, gatewayInvoiceID string, periodStart, periodEnd time.Time) (*UserSubscriptionPayment, error) {
	if id == "" || userID == "" || planID == "" || transactionID == "" || gatewaySubID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &UserSubscriptionPayment{
		ID:                    id,
		UserID:                userID,
		PlanID:                planID,
		TransactionID:         transactionID,
		GatewaySubscriptionID: gatewaySubID,
		GatewayInvoiceID:      gatewayInvoiceID,
		Status:                SubscriptionStatusActive,
		PeriodStart:           periodStart,
		PeriodEnd:             periodEnd,
		AutoRenew:             true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// WithinRefundWindow reports whether a refund may still be requested at the
// given instant. The boundary is inclusive: exactly RefundWindow after the
// first period start still qualifies.
func (s *UserSubscriptionPayment) WithinRefundWindow(now time.Time) bool {
	return now.Sub(s.PeriodStart) <= RefundWindow
}
