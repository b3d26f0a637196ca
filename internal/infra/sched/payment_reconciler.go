package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/adapter"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/infra/metrics"
	"lms-payments/internal/usecase"
)

const reconcileBatch = 200

// PaymentReconciler periodically scans for stale PENDING transactions and
// finalizes them against the gateway. This covers lost webhook deliveries and
// crashes between intent creation and settlement: a purchase whose intent
// succeeded is committed, a canceled one aborted, and anything still open
// past the expiry horizon is failed so the ledger does not accumulate
// PENDING rows forever.
type PaymentReconciler struct {
	interval    time.Duration
	staleAfter  time.Duration
	expireAfter time.Duration

	transactions repository.TransactionRepository
	pending      repository.PendingPurchaseItemRepository
	purchases    usecase.PurchaseUseCase
	gateway      adapter.PaymentGateway
	log          *zerolog.Logger
}

func NewPaymentReconciler(
	interval, staleAfter, expireAfter time.Duration,
	transactions repository.TransactionRepository,
	pending repository.PendingPurchaseItemRepository,
	purchases usecase.PurchaseUseCase,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if expireAfter <= staleAfter {
		expireAfter = 24 * time.Hour
	}
	reconcilerLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		interval:     interval,
		staleAfter:   staleAfter,
		expireAfter:  expireAfter,
		transactions: transactions,
		pending:      pending,
		purchases:    purchases,
		gateway:      gateway,
		log:          &reconcilerLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).
		Dur("expire_after", w.expireAfter).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.transactions.ListPendingOlderThan(ctx, nil, cutoff, reconcileBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list stale pending")
		return
	}
	for _, t := range stale {
		switch t.Type {
		case model.TransactionTypePurchase:
			w.reconcilePurchase(ctx, t)
		case model.TransactionTypeSubscriptionPayment:
			// First invoices are settled by invoice webhooks keyed on the
			// subscription's metadata; there is no intent to poll here, so
			// stale ones are only expired.
			w.expireIfAbandoned(ctx, t)
		}
	}
}

func (w *PaymentReconciler) reconcilePurchase(ctx context.Context, t *model.Transaction) {
	items, err := w.pending.FindByTransactionID(ctx, nil, t.ID)
	if err != nil {
		w.log.Error().Err(err).Str("transaction_id", t.ID).Msg("reconciler: load staged items")
		return
	}
	if len(items) == 0 {
		// Intent creation failed during initiate; there is nothing at the
		// gateway to settle.
		w.expireIfAbandoned(ctx, t)
		return
	}

	intentID := items[0].IntentID
	status, err := w.gateway.GetPaymentIntentStatus(ctx, intentID)
	if err != nil {
		w.log.Warn().Err(err).Str("intent_id", intentID).Msg("reconciler: gateway lookup failed")
		return
	}

	switch status {
	case adapter.IntentStatusSucceeded:
		if err := w.purchases.Commit(ctx, intentID); err != nil {
			w.log.Error().Err(err).Str("intent_id", intentID).Msg("reconciler: commit failed")
			return
		}
		metrics.IncReconcile("committed")
		w.log.Info().Str("transaction_id", t.ID).Str("intent_id", intentID).Msg("reconciled stale purchase as committed")
	case adapter.IntentStatusCanceled:
		if err := w.purchases.Abort(ctx, intentID); err != nil {
			w.log.Error().Err(err).Str("intent_id", intentID).Msg("reconciler: abort failed")
			return
		}
		metrics.IncReconcile("aborted")
		w.log.Info().Str("transaction_id", t.ID).Str("intent_id", intentID).Msg("reconciled stale purchase as aborted")
	default:
		// Still open at the gateway. Leave it until the expiry horizon, then
		// abort: the intent cannot realistically succeed that late, and a
		// webhook arriving after the abort finds no staged items and no-ops.
		if time.Since(t.CreatedAt) <= w.expireAfter {
			return
		}
		if err := w.purchases.Abort(ctx, intentID); err != nil {
			w.log.Error().Err(err).Str("intent_id", intentID).Msg("reconciler: expire failed")
			return
		}
		metrics.IncReconcile("expired")
		w.log.Info().Str("transaction_id", t.ID).Str("intent_id", intentID).Msg("expired abandoned purchase")
	}
}

func (w *PaymentReconciler) expireIfAbandoned(ctx context.Context, t *model.Transaction) {
	if time.Since(t.CreatedAt) <= w.expireAfter {
		return
	}
	flipped, err := w.transactions.UpdateStatusIfPending(ctx, nil, t.ID, model.TransactionStatusFailed)
	if err != nil {
		w.log.Error().Err(err).Str("transaction_id", t.ID).Msg("reconciler: expire flip failed")
		return
	}
	if !flipped {
		return
	}
	metrics.IncTransaction(string(t.Type), string(model.TransactionStatusFailed))
	metrics.IncReconcile("expired")
	w.log.Info().Str("transaction_id", t.ID).Str("type", string(t.Type)).Msg("expired abandoned transaction")
}
