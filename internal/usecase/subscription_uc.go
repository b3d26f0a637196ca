package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/adapter"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// InitiatedSubscription is what the client needs to confirm the first
// invoice's payment.
type InitiatedSubscription struct {
	TransactionID         string
	GatewaySubscriptionID string
	ClientSecret          string
}

type SubscriptionUseCase interface {
	// Create opens a PENDING ledger transaction and a gateway subscription
	// for the plan. The subscription only materializes locally when the
	// first invoice's payment succeeds.
	Create(ctx context.Context, userID, planID string) (*InitiatedSubscription, error)
	// Cancel terminates an ACTIVE subscription at the user's request.
	Cancel(ctx context.Context, subscriptionID, userID string) error
	// Refund refunds the first period and terminates the subscription; only
	// valid within the refund window after the first period start.
	Refund(ctx context.Context, subscriptionID, userID string) error

	// Webhook-driven transitions. All are idempotent under duplicate and
	// out-of-order delivery.
	ActivateOrRenew(ctx context.Context, inv *model.InvoiceEvent) error
	RecordInvoiceFailure(ctx context.Context, inv *model.InvoiceEvent) error
	HandleSubscriptionDeleted(ctx context.Context, gatewaySubID string, canceledAt time.Time) error
}

type subscriptionUC struct {
	plans        repository.SubscriptionPlanRepository
	subs         repository.SubscriptionRepository
	renewals     repository.RenewalRepository
	transactions repository.TransactionRepository
	users        repository.UserRepository
	outbox       repository.OutboxRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewSubscriptionUseCase(
	plans repository.SubscriptionPlanRepository,
	subs repository.SubscriptionRepository,
	renewals repository.RenewalRepository,
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	log *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		plans:        plans,
		subs:         subs,
		renewals:     renewals,
		transactions: transactions,
		users:        users,
		outbox:       outbox,
		gateway:      gateway,
		tm:           tm,
		log:          log,
	}
}

func (u *subscriptionUC) Create(ctx context.Context, userID, planID string) (*InitiatedSubscription, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}

	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %s is inactive: %w", planID, domain.ErrNotFound)
	}

	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	customerID, err := u.gateway.EnsureCustomer(ctx, user.GatewayCustomerID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: ensure customer: %v", domain.ErrGatewayUnavailable, err)
	}
	if customerID != user.GatewayCustomerID {
		if err := u.users.SetGatewayCustomerID(ctx, nil, userID, customerID); err != nil {
			return nil, err
		}
	}

	t, err := model.NewTransaction(uuid.NewString(), userID, model.TransactionTypeSubscriptionPayment, plan.Amount, plan.Currency)
	if err != nil {
		return nil, err
	}
	if err := u.transactions.Save(ctx, nil, t); err != nil {
		return nil, err
	}
	metrics.IncTransaction(string(t.Type), string(t.Status))

	// On gateway failure the transaction stays PENDING; retrying creates a
	// fresh transaction and subscription attempt, never a duplicate charge.
	res, err := u.gateway.CreateSubscription(ctx, customerID, plan.GatewayPriceID, map[string]string{
		model.MetaTransactionID: t.ID,
		model.MetaUserID:        userID,
		model.MetaPlanID:        planID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create subscription: %v", domain.ErrGatewayUnavailable, err)
	}

	u.log.Info().Str("transaction_id", t.ID).Str("gateway_subscription_id", res.SubscriptionID).
		Str("plan_id", planID).Msg("subscription initiated")

	return &InitiatedSubscription{
		TransactionID:         t.ID,
		GatewaySubscriptionID: res.SubscriptionID,
		ClientSecret:          res.ClientSecret,
	}, nil
}

// ActivateOrRenew handles invoice.payment_succeeded. An unknown gateway
// subscription id means this is the first invoice: the subscription
// materializes now. A known one means a later billing period was paid.
func (u *subscriptionUC) ActivateOrRenew(ctx context.Context, inv *model.InvoiceEvent) error {
	if inv == nil || inv.SubscriptionID == "" {
		return domain.ErrInvalidArgument
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByGatewaySubscriptionID(ctx, tx, inv.SubscriptionID)
		if errors.Is(err, domain.ErrNotFound) {
			return u.activateFirstInvoice(ctx, tx, inv)
		}
		if err != nil {
			return err
		}
		return u.recordRenewal(ctx, tx, sub, inv)
	})
}

func (u *subscriptionUC) activateFirstInvoice(ctx context.Context, tx repository.Tx, inv *model.InvoiceEvent) error {
	transactionID := inv.Metadata[model.MetaTransactionID]
	userID := inv.Metadata[model.MetaUserID]
	planID := inv.Metadata[model.MetaPlanID]
	if transactionID == "" || userID == "" || planID == "" {
		return fmt.Errorf("invoice %s for subscription %s lacks routing metadata: %w",
			inv.InvoiceID, inv.SubscriptionID, domain.ErrInvalidArgument)
	}

	flipped, err := u.transactions.UpdateStatusIfPending(ctx, tx, transactionID, model.TransactionStatusSuccess)
	if err != nil {
		return err
	}
	if !flipped {
		// Replayed first invoice: the transaction settled earlier but the
		// subscription row is missing. Log loudly, change nothing.
		u.log.Warn().Str("transaction_id", transactionID).Str("gateway_subscription_id", inv.SubscriptionID).
			Msg("first invoice replay with terminal transaction and no subscription row")
		return nil
	}
	metrics.IncTransaction(string(model.TransactionTypeSubscriptionPayment), string(model.TransactionStatusSuccess))

	sub, err := model.NewUserSubscriptionPayment(
		uuid.NewString(), userID, planID, transactionID,
		inv.SubscriptionID, inv.InvoiceID, inv.PeriodStart, inv.PeriodEnd,
	)
	if err != nil {
		return err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return err
	}

	plan, err := u.plans.FindByID(ctx, tx, planID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := u.enqueue(ctx, tx, model.RoutingKeySubscriptionStatus, model.SubscriptionStatusMessage{
		UserID:           userID,
		SubscriptionName: plan.Name,
		Status:           string(model.SubscriptionStatusActive),
		PeriodStart:      sub.PeriodStart,
		PeriodEnd:        sub.PeriodEnd,
		Timestamp:        now,
	}); err != nil {
		return err
	}
	if err := u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
		UserID:           userID,
		EventType:        "subscription_activated",
		Amount:           inv.AmountDue,
		Currency:         inv.Currency,
		SubscriptionName: plan.Name,
	}); err != nil {
		return err
	}

	metrics.AddRevenue(plan.Currency, plan.Amount)
	u.log.Info().Str("subscription_id", sub.ID).Str("gateway_subscription_id", inv.SubscriptionID).
		Str("plan_id", planID).Msg("subscription activated")
	return nil
}

func (u *subscriptionUC) recordRenewal(ctx context.Context, tx repository.Tx, sub *model.UserSubscriptionPayment, inv *model.InvoiceEvent) error {
	// The subscription tracks the latest applied invoice, so a replayed
	// first invoice (or the most recent renewal) is recognized here without
	// a renewal row.
	if sub.GatewayInvoiceID == inv.InvoiceID {
		u.log.Debug().Str("invoice_id", inv.InvoiceID).Msg("invoice already applied to subscription")
		return nil
	}
	if existing, err := u.renewals.FindLatestByInvoiceID(ctx, tx, inv.InvoiceID); err == nil &&
		existing.Status == model.RenewalStatusSuccess {
		u.log.Debug().Str("invoice_id", inv.InvoiceID).Msg("renewal replay, already recorded")
		return nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	t, err := model.NewTransaction(uuid.NewString(), sub.UserID, model.TransactionTypeRenewal, inv.AmountDue, inv.Currency)
	if err != nil {
		return err
	}
	t.Status = model.TransactionStatusSuccess
	if err := u.transactions.Save(ctx, tx, t); err != nil {
		return err
	}
	metrics.IncTransaction(string(t.Type), string(t.Status))

	renewal := &model.Renewal{
		ID:               uuid.NewString(),
		SubscriptionID:   sub.ID,
		TransactionID:    t.ID,
		GatewayInvoiceID: inv.InvoiceID,
		Status:           model.RenewalStatusSuccess,
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		CreatedAt:        time.Now(),
	}
	if err := u.renewals.Save(ctx, tx, renewal); err != nil {
		return err
	}
	if err := u.subs.ExtendPeriod(ctx, tx, sub.ID, inv.PeriodEnd, inv.InvoiceID); err != nil {
		return err
	}

	plan, err := u.plans.FindByID(ctx, tx, sub.PlanID)
	if err != nil {
		return err
	}
	if err := u.enqueue(ctx, tx, model.RoutingKeySubscriptionStatus, model.SubscriptionStatusMessage{
		UserID:           sub.UserID,
		SubscriptionName: plan.Name,
		Status:           "RENEWED",
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		Timestamp:        time.Now(),
	}); err != nil {
		return err
	}

	metrics.AddRevenue(inv.Currency, inv.AmountDue)
	u.log.Info().Str("subscription_id", sub.ID).Str("invoice_id", inv.InvoiceID).
		Time("period_end", inv.PeriodEnd).Msg("subscription renewed")
	return nil
}

// RecordInvoiceFailure handles invoice.payment_failed. A failed renewal
// never cancels the subscription; only subscription.deleted or user action
// does that.
func (u *subscriptionUC) RecordInvoiceFailure(ctx context.Context, inv *model.InvoiceEvent) error {
	if inv == nil || inv.SubscriptionID == "" {
		return domain.ErrInvalidArgument
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByGatewaySubscriptionID(ctx, tx, inv.SubscriptionID)
		if errors.Is(err, domain.ErrNotFound) {
			return u.failFirstInvoice(ctx, tx, inv)
		}
		if err != nil {
			return err
		}
		return u.recordRenewalFailure(ctx, tx, sub, inv)
	})
}

func (u *subscriptionUC) failFirstInvoice(ctx context.Context, tx repository.Tx, inv *model.InvoiceEvent) error {
	transactionID := inv.Metadata[model.MetaTransactionID]
	userID := inv.Metadata[model.MetaUserID]
	if transactionID == "" {
		return fmt.Errorf("failed invoice %s lacks transaction metadata: %w", inv.InvoiceID, domain.ErrInvalidArgument)
	}

	flipped, err := u.transactions.UpdateStatusIfPending(ctx, tx, transactionID, model.TransactionStatusFailed)
	if err != nil {
		return err
	}
	if !flipped {
		u.log.Debug().Str("transaction_id", transactionID).Msg("first invoice failure replay, transaction already terminal")
		return nil
	}
	metrics.IncTransaction(string(model.TransactionTypeSubscriptionPayment), string(model.TransactionStatusFailed))

	return u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
		UserID:    userID,
		EventType: "subscription_payment_failed",
		Amount:    inv.AmountDue,
		Currency:  inv.Currency,
	})
}

func (u *subscriptionUC) recordRenewalFailure(ctx context.Context, tx repository.Tx, sub *model.UserSubscriptionPayment, inv *model.InvoiceEvent) error {
	// Same invoice, same attempt count: replayed delivery. A higher attempt
	// count is a genuine new payment attempt and gets its own row.
	if existing, err := u.renewals.FindLatestByInvoiceID(ctx, tx, inv.InvoiceID); err == nil &&
		existing.Status == model.RenewalStatusFailed && existing.RetryCount >= inv.AttemptCount {
		u.log.Debug().Str("invoice_id", inv.InvoiceID).Int("attempt", inv.AttemptCount).
			Msg("renewal failure replay, already recorded")
		return nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	t, err := model.NewTransaction(uuid.NewString(), sub.UserID, model.TransactionTypeRenewal, inv.AmountDue, inv.Currency)
	if err != nil {
		return err
	}
	t.Status = model.TransactionStatusFailed
	if err := u.transactions.Save(ctx, tx, t); err != nil {
		return err
	}
	metrics.IncTransaction(string(t.Type), string(t.Status))

	renewal := &model.Renewal{
		ID:               uuid.NewString(),
		SubscriptionID:   sub.ID,
		TransactionID:    t.ID,
		GatewayInvoiceID: inv.InvoiceID,
		Status:           model.RenewalStatusFailed,
		RetryCount:       inv.AttemptCount,
		NextAttemptAt:    inv.NextAttemptAt,
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		CreatedAt:        time.Now(),
	}
	if err := u.renewals.Save(ctx, tx, renewal); err != nil {
		return err
	}

	plan, err := u.plans.FindByID(ctx, tx, sub.PlanID)
	if err != nil {
		return err
	}
	if err := u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
		UserID:           sub.UserID,
		EventType:        "renewal_failed",
		Amount:           inv.AmountDue,
		Currency:         inv.Currency,
		SubscriptionName: plan.Name,
		RetryCount:       inv.AttemptCount,
	}); err != nil {
		return err
	}

	u.log.Warn().Str("subscription_id", sub.ID).Str("invoice_id", inv.InvoiceID).
		Int("attempt", inv.AttemptCount).Msg("renewal payment failed")
	return nil
}

func (u *subscriptionUC) Cancel(ctx context.Context, subscriptionID, userID string) error {
	sub, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return domain.ErrNotFound
	}
	if sub.Status != model.SubscriptionStatusActive {
		return domain.ErrInvalidState
	}

	if err := u.gateway.CancelSubscription(ctx, sub.GatewaySubscriptionID); err != nil {
		return fmt.Errorf("%w: cancel subscription: %v", domain.ErrGatewayUnavailable, err)
	}

	now := time.Now()
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		flipped, err := u.subs.UpdateStatusIfActive(ctx, tx, sub.ID, model.SubscriptionStatusCanceled, now)
		if err != nil {
			return err
		}
		if !flipped {
			// Lost the race with another terminal transition.
			return domain.ErrInvalidState
		}
		if err := u.enqueueCancellation(ctx, tx, sub, now); err != nil {
			return err
		}
		u.log.Info().Str("subscription_id", sub.ID).Msg("subscription canceled")
		return nil
	})
}

func (u *subscriptionUC) Refund(ctx context.Context, subscriptionID, userID string) error {
	sub, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return domain.ErrNotFound
	}
	if sub.Status != model.SubscriptionStatusActive {
		return domain.ErrInvalidState
	}
	if !sub.WithinRefundWindow(time.Now()) {
		return domain.ErrRefundWindowExpired
	}

	plan, err := u.plans.FindByID(ctx, nil, sub.PlanID)
	if err != nil {
		return err
	}

	refundID, err := u.gateway.CreateRefund(ctx, sub.GatewayInvoiceID, map[string]string{
		model.MetaTransactionID: sub.TransactionID,
		model.MetaUserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("%w: create refund: %v", domain.ErrGatewayUnavailable, err)
	}

	now := time.Now()
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		flipped, err := u.subs.UpdateStatusIfActive(ctx, tx, sub.ID, model.SubscriptionStatusRefunded, now)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrInvalidState
		}
		if err := u.subs.SetGatewayRefundID(ctx, tx, sub.ID, refundID); err != nil {
			return err
		}

		t, err := model.NewTransaction(uuid.NewString(), userID, model.TransactionTypeRefund, plan.Amount, plan.Currency)
		if err != nil {
			return err
		}
		t.Status = model.TransactionStatusSuccess
		if err := u.transactions.Save(ctx, tx, t); err != nil {
			return err
		}
		metrics.IncTransaction(string(t.Type), string(t.Status))

		if err := u.enqueue(ctx, tx, model.RoutingKeySubscriptionStatus, model.SubscriptionStatusMessage{
			UserID:           sub.UserID,
			SubscriptionName: plan.Name,
			Status:           string(model.SubscriptionStatusRefunded),
			PeriodStart:      sub.PeriodStart,
			PeriodEnd:        sub.PeriodEnd,
			Timestamp:        now,
		}); err != nil {
			return err
		}
		return u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
			UserID:           sub.UserID,
			EventType:        "subscription_refunded",
			Amount:           plan.Amount,
			Currency:         plan.Currency,
			SubscriptionName: plan.Name,
		})
	})
	if err != nil {
		return err
	}

	// Stop future invoices. The refund and the REFUNDED status are already
	// durable; a failure here only leaves the gateway subscription to be
	// cleaned up on its next invoice.
	if err := u.gateway.CancelSubscription(ctx, sub.GatewaySubscriptionID); err != nil {
		u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("gateway cancel after refund failed")
	}

	u.log.Info().Str("subscription_id", sub.ID).Str("refund_id", refundID).Msg("subscription refunded")
	return nil
}

func (u *subscriptionUC) HandleSubscriptionDeleted(ctx context.Context, gatewaySubID string, canceledAt time.Time) error {
	if gatewaySubID == "" {
		return domain.ErrInvalidArgument
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByGatewaySubscriptionID(ctx, tx, gatewaySubID)
		if err != nil {
			return err
		}
		flipped, err := u.subs.UpdateStatusIfActive(ctx, tx, sub.ID, model.SubscriptionStatusCanceled, canceledAt)
		if err != nil {
			return err
		}
		if !flipped {
			// Already CANCELED or REFUNDED; duplicate delivery is a no-op.
			u.log.Debug().Str("subscription_id", sub.ID).Msg("subscription.deleted replay, already terminal")
			return nil
		}
		if err := u.enqueueCancellation(ctx, tx, sub, canceledAt); err != nil {
			return err
		}
		u.log.Info().Str("subscription_id", sub.ID).Msg("subscription canceled by gateway event")
		return nil
	})
}

func (u *subscriptionUC) enqueueCancellation(ctx context.Context, tx repository.Tx, sub *model.UserSubscriptionPayment, at time.Time) error {
	plan, err := u.plans.FindByID(ctx, tx, sub.PlanID)
	if err != nil {
		return err
	}
	if err := u.enqueue(ctx, tx, model.RoutingKeySubscriptionStatus, model.SubscriptionStatusMessage{
		UserID:           sub.UserID,
		SubscriptionName: plan.Name,
		Status:           string(model.SubscriptionStatusCanceled),
		PeriodStart:      sub.PeriodStart,
		PeriodEnd:        sub.PeriodEnd,
		Timestamp:        at,
	}); err != nil {
		return err
	}
	return u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
		UserID:           sub.UserID,
		EventType:        "subscription_canceled",
		Amount:           0,
		Currency:         plan.Currency,
		SubscriptionName: plan.Name,
	})
}

func (u *subscriptionUC) enqueue(ctx context.Context, tx repository.Tx, routingKey string, payload interface{}) error {
	m, err := newOutboxMessage(routingKey, payload)
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, m)
}
