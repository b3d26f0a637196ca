package adapter

import (
	"context"
	"time"

	"lms-payments/internal/domain/model"
)

// PaymentIntentResult is the provider-agnostic outcome of creating a
// payment intent.
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string // returned to the client to confirm the charge
}

// SubscriptionResult is the outcome of creating a gateway subscription. The
// client secret belongs to the first invoice's payment intent.
type SubscriptionResult struct {
	SubscriptionID string
	ClientSecret   string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// IntentStatus is the provider-neutral settlement state of a payment intent.
type IntentStatus string

const (
	IntentStatusSucceeded  IntentStatus = "succeeded"
	IntentStatusCanceled   IntentStatus = "canceled"
	IntentStatusProcessing IntentStatus = "processing" // awaiting confirmation or capture
)

// PaymentGateway is the hex port for the external payment provider. All
// created objects are tagged with the local transaction id for traceability,
// and every call must respect ctx deadlines: on timeout the local PENDING
// transaction is safe to retry since creation is keyed by transaction id.
type PaymentGateway interface {
	Name() string

	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (PaymentIntentResult, error)
	// GetPaymentIntentStatus reports the current state of an intent. The
	// reconciler uses it to settle stale PENDING transactions when the
	// webhook delivery was lost.
	GetPaymentIntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (SubscriptionResult, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// CreateRefund refunds the payment behind the given invoice in full and
	// returns the provider refund id.
	CreateRefund(ctx context.Context, invoiceID string, metadata map[string]string) (string, error)
	// EnsureCustomer returns an existing gateway customer id unchanged, or
	// creates a customer for the email when the id is empty.
	EnsureCustomer(ctx context.Context, customerID, email string) (string, error)
}

// WebhookDecoder verifies an inbound webhook payload against its signature
// header and decodes it into a provider-neutral event. Verification precedes
// all routing; an invalid signature yields domain.ErrSignatureInvalid and no
// state change.
type WebhookDecoder interface {
	DecodeEvent(payload []byte, signatureHeader string) (*model.GatewayEvent, error)
}
