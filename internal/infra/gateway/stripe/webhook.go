package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/adapter"
)

// WebhookDecoder verifies Stripe webhook signatures and maps events onto
// the provider-neutral model.
type WebhookDecoder struct {
	secret string
}

var _ adapter.WebhookDecoder = (*WebhookDecoder)(nil)

func NewWebhookDecoder(secret string) *WebhookDecoder {
	return &WebhookDecoder{secret: secret}
}

func (d *WebhookDecoder) DecodeEvent(payload []byte, signatureHeader string) (*model.GatewayEvent, error) {
	ev, err := webhook.ConstructEvent(payload, signatureHeader, d.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	out := &model.GatewayEvent{
		ID:         ev.ID,
		Kind:       model.EventKindUnhandled,
		OccurredAt: time.Unix(ev.Created, 0).UTC(),
	}

	switch string(ev.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: decode payment intent event %s: %w", ev.ID, err)
		}
		out.Kind = model.EventKind(ev.Type)
		out.IntentID = pi.ID
		out.IntentMetadata = pi.Metadata

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("stripe: decode invoice event %s: %w", ev.ID, err)
		}
		out.Kind = model.EventKind(ev.Type)
		out.Invoice = mapInvoice(&inv)
		out.SubscriptionID = out.Invoice.SubscriptionID

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: decode subscription event %s: %w", ev.ID, err)
		}
		out.Kind = model.EventKindSubscriptionDeleted
		out.SubscriptionID = sub.ID
		if sub.CanceledAt > 0 {
			out.OccurredAt = time.Unix(sub.CanceledAt, 0).UTC()
		}
	}

	return out, nil
}

func mapInvoice(inv *stripe.Invoice) *model.InvoiceEvent {
	ev := &model.InvoiceEvent{
		InvoiceID:    inv.ID,
		AmountDue:    inv.AmountDue,
		Currency:     string(inv.Currency),
		AttemptCount: int(inv.AttemptCount),
		PeriodStart:  time.Unix(inv.PeriodStart, 0).UTC(),
		PeriodEnd:    time.Unix(inv.PeriodEnd, 0).UTC(),
	}
	if inv.Subscription != nil {
		ev.SubscriptionID = inv.Subscription.ID
	}
	if inv.SubscriptionDetails != nil {
		ev.Metadata = inv.SubscriptionDetails.Metadata
	}
	// The line period is the service period being billed; the invoice-level
	// period is the billing run window.
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
		p := inv.Lines.Data[0].Period
		ev.PeriodStart = time.Unix(p.Start, 0).UTC()
		ev.PeriodEnd = time.Unix(p.End, 0).UTC()
	}
	if inv.NextPaymentAttempt > 0 {
		t := time.Unix(inv.NextPaymentAttempt, 0).UTC()
		ev.NextAttemptAt = &t
	}
	return ev
}
