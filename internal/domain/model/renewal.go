package model

import "time"

type RenewalStatus string

const (
	RenewalStatusSuccess RenewalStatus = "SUCCESS"
	RenewalStatusFailed  RenewalStatus = "FAILED"
)

// Renewal records one billing-period payment attempt for a subscription.
// Immutable after creation; a failed renewal marks the attempt but never
// terminates the subscription by itself.
type Renewal struct {
	ID               string // UUID
	SubscriptionID   string // UUID -> UserSubscriptionPayment
	TransactionID    string // UUID -> Transaction (unique)
	GatewayInvoiceID string // invoice attempted; dedupe key for replayed events
	Status           RenewalStatus
	RetryCount       int        // gateway attempt count for FAILED renewals
	NextAttemptAt    *time.Time // gateway-provided retry timestamp for FAILED renewals
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CreatedAt        time.Time
}
