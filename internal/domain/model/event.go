package model

import "time"

// EventKind is the closed set of gateway webhook event classes this service
// routes on. Anything else decodes to EventKindUnhandled, which is logged
// and acknowledged, never an error.
type EventKind string

const (
	EventKindPaymentIntentSucceeded EventKind = "payment_intent.succeeded"
	EventKindPaymentIntentFailed    EventKind = "payment_intent.payment_failed"
	EventKindInvoicePaid            EventKind = "invoice.payment_succeeded"
	EventKindInvoiceFailed          EventKind = "invoice.payment_failed"
	EventKindSubscriptionDeleted    EventKind = "customer.subscription.deleted"
	EventKindUnhandled              EventKind = "unhandled"
)

// Metadata keys and values the orchestrators tag gateway objects with.
// Intent metadata is the only way to tell a course purchase apart from a
// subscription's first invoice payment; purpose is never inferred from
// amount or timing.
const (
	MetaTransactionID   = "transaction_id"
	MetaUserID          = "user_id"
	MetaTransactionType = "transaction_type"
	MetaPlanID          = "subscription_plan_id"

	TransactionTypeTagCoursePurchase = "COURSE_PURCHASE"
)

// InvoiceEvent is the provider-neutral projection of a gateway invoice
// carried by invoice.* events.
type InvoiceEvent struct {
	InvoiceID      string
	SubscriptionID string            // gateway subscription id
	Metadata       map[string]string // subscription metadata (transaction_id etc.)
	PeriodStart    time.Time
	PeriodEnd      time.Time
	AmountDue      int64
	Currency       string
	AttemptCount   int        // gateway attempt count (failed invoices)
	NextAttemptAt  *time.Time // gateway retry schedule (failed invoices)
}

// GatewayEvent is one verified, decoded webhook delivery.
type GatewayEvent struct {
	ID             string
	Kind           EventKind
	IntentID       string            // payment_intent.* events
	IntentMetadata map[string]string // payment_intent.* events
	Invoice        *InvoiceEvent     // invoice.* events
	SubscriptionID string            // customer.subscription.deleted
	OccurredAt     time.Time
}

// IsCoursePurchase reports whether an intent event carries the complete
// course-purchase routing metadata. Intents without it belong to
// subscription invoices and are settled via invoice events instead.
func (e *GatewayEvent) IsCoursePurchase() bool {
	if e.IntentMetadata == nil {
		return false
	}
	return e.IntentMetadata[MetaTransactionType] == TransactionTypeTagCoursePurchase &&
		e.IntentMetadata[MetaTransactionID] != "" &&
		e.IntentMetadata[MetaUserID] != ""
}
