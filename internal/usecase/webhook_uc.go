package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"lms-payments/internal/domain/model"
	"lms-payments/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase routes verified gateway events to the lifecycle they
// belong to. Every handler is idempotent; the HTTP layer acknowledges any
// event that reaches it so the gateway does not redeliver forever.
type WebhookUseCase interface {
	Handle(ctx context.Context, ev *model.GatewayEvent) error
}

type webhookUC struct {
	purchases     PurchaseUseCase
	subscriptions SubscriptionUseCase
	log           *zerolog.Logger
}

func NewWebhookUseCase(purchases PurchaseUseCase, subscriptions SubscriptionUseCase, log *zerolog.Logger) *webhookUC {
	return &webhookUC{purchases: purchases, subscriptions: subscriptions, log: log}
}

func (u *webhookUC) Handle(ctx context.Context, ev *model.GatewayEvent) error {
	log := u.log.With().Str("event_id", ev.ID).Str("event_kind", string(ev.Kind)).Logger()

	switch ev.Kind {
	case model.EventKindPaymentIntentSucceeded:
		if !ev.IsCoursePurchase() {
			// Intents we did not create, or subscription invoices surfacing as
			// bare intent events. Not ours to act on.
			log.Debug().Str("intent_id", ev.IntentID).Msg("intent event without purchase metadata, skipping")
			metrics.IncWebhookEvent(string(ev.Kind), "skipped")
			return nil
		}
		if err := u.purchases.Commit(ctx, ev.IntentID); err != nil {
			metrics.IncWebhookEvent(string(ev.Kind), "error")
			return err
		}

	case model.EventKindPaymentIntentFailed:
		if !ev.IsCoursePurchase() {
			log.Debug().Str("intent_id", ev.IntentID).Msg("intent event without purchase metadata, skipping")
			metrics.IncWebhookEvent(string(ev.Kind), "skipped")
			return nil
		}
		if err := u.purchases.Abort(ctx, ev.IntentID); err != nil {
			metrics.IncWebhookEvent(string(ev.Kind), "error")
			return err
		}

	case model.EventKindInvoicePaid:
		if err := u.subscriptions.ActivateOrRenew(ctx, ev.Invoice); err != nil {
			metrics.IncWebhookEvent(string(ev.Kind), "error")
			return err
		}

	case model.EventKindInvoiceFailed:
		if err := u.subscriptions.RecordInvoiceFailure(ctx, ev.Invoice); err != nil {
			metrics.IncWebhookEvent(string(ev.Kind), "error")
			return err
		}

	case model.EventKindSubscriptionDeleted:
		if err := u.subscriptions.HandleSubscriptionDeleted(ctx, ev.SubscriptionID, ev.OccurredAt); err != nil {
			metrics.IncWebhookEvent(string(ev.Kind), "error")
			return err
		}

	default:
		// Acknowledged but not acted on; the subscribed event set at the
		// gateway is wider than what we consume.
		log.Debug().Msg("unhandled event kind")
		metrics.IncWebhookEvent(string(ev.Kind), "ignored")
		return nil
	}

	metrics.IncWebhookEvent(string(ev.Kind), "handled")
	return nil
}
