package stripe

import (
	"context"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"lms-payments/internal/config"
	"lms-payments/internal/domain/ports/adapter"
)

// Gateway implements adapter.PaymentGateway on the Stripe API.
type Gateway struct {
	sc      *client.API
	timeout time.Duration
}

var _ adapter.PaymentGateway = (*Gateway)(nil)

func NewGateway(cfg *config.GatewayConfig) *Gateway {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{sc: sc, timeout: timeout}
}

func (g *Gateway) Name() string { return "stripe" }

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntentResult, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return adapter.PaymentIntentResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return adapter.PaymentIntentResult{IntentID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *Gateway) GetPaymentIntentStatus(ctx context.Context, intentID string) (adapter.IntentStatus, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	pi, err := g.sc.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent %s: %w", intentID, err)
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return adapter.IntentStatusSucceeded, nil
	case stripe.PaymentIntentStatusCanceled:
		return adapter.IntentStatusCanceled, nil
	default:
		return adapter.IntentStatusProcessing, nil
	}
}

func (g *Gateway) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (adapter.SubscriptionResult, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		// The subscription starts incomplete; it only becomes billable when
		// the client confirms the first invoice's payment intent.
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := g.sc.Subscriptions.New(params)
	if err != nil {
		return adapter.SubscriptionResult{}, fmt.Errorf("stripe: create subscription: %w", err)
	}

	res := adapter.SubscriptionResult{
		SubscriptionID: sub.ID,
		PeriodStart:    time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:      time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		res.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return res, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}}
	if _, err := g.sc.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe: cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// CreateRefund resolves the payment intent behind the invoice and refunds it
// in full.
func (g *Gateway) CreateRefund(ctx context.Context, invoiceID string, metadata map[string]string) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	inv, err := g.sc.Invoices.Get(invoiceID, &stripe.InvoiceParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", fmt.Errorf("stripe: resolve invoice %s: %w", invoiceID, err)
	}
	if inv.PaymentIntent == nil {
		return "", fmt.Errorf("stripe: invoice %s has no payment intent", invoiceID)
	}

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(inv.PaymentIntent.ID),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	ref, err := g.sc.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create refund for invoice %s: %w", invoiceID, err)
	}
	return ref.ID, nil
}

func (g *Gateway) EnsureCustomer(ctx context.Context, customerID, email string) (string, error) {
	if customerID != "" {
		return customerID, nil
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	cus, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return cus.ID, nil
}
