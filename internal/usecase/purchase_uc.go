package usecase

import (
	"context"
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
var _ PurchaseUseCase = (*purchaseUC)(nil)

// InitiatedPurchase is what the client needs to confirm the charge.
type InitiatedPurchase struct {
	TransactionID string
	IntentID      string
	ClientSecret  string
}

type PurchaseUseCase interface {
	// Initiate prices the courses, opens a PENDING ledger transaction, and
	// creates a gateway payment intent tagged with it.
	Initiate(ctx context.Context, userID string, courseIDs []string) (*InitiatedPurchase, error)
	// Commit promotes staged items into a committed purchase. Invoked by the
	// webhook dispatcher only; idempotent under duplicate delivery.
	Commit(ctx context.Context, intentID string) error
	// Abort fails the transaction and discards staged items. Idempotent.
	Abort(ctx context.Context, intentID string) error
}

type purchaseUC struct {
	transactions repository.TransactionRepository
	pending      repository.PendingPurchaseItemRepository
	purchases    repository.PurchaseRepository
	outbox       repository.OutboxRepository
	catalog      adapter.CourseCatalog
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	currency     string
	log          *zerolog.Logger
}

func NewPurchaseUseCase(
	transactions repository.TransactionRepository,
	pending repository.PendingPurchaseItemRepository,
	purchases repository.PurchaseRepository,
	outbox repository.OutboxRepository,
	catalog adapter.CourseCatalog,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	currency string,
	log *zerolog.Logger,
) *purchaseUC {
	return &purchaseUC{
		transactions: transactions,
		pending:      pending,
		purchases:    purchases,
		outbox:       outbox,
		catalog:      catalog,
		gateway:      gateway,
		tm:           tm,
		currency:     currency,
		log:          log,
	}
}

func (u *purchaseUC) Initiate(ctx context.Context, userID string, courseIDs []string) (*InitiatedPurchase, error) {
	if userID == "" || len(courseIDs) == 0 {
		return nil, domain.ErrInvalidArgument
	}

	courses, err := u.catalog.Prices(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if len(courses) == 0 {
		return nil, domain.ErrCatalogUnavailable
	}

	var total int64
	for _, c := range courses {
		total += c.Price
	}

	t, err := model.NewTransaction(uuid.NewString(), userID, model.TransactionTypePurchase, total, u.currency)
	if err != nil {
		return nil, err
	}
	if err := u.transactions.Save(ctx, nil, t); err != nil {
		return nil, err
	}
	metrics.IncTransaction(string(t.Type), string(t.Status))

	// A gateway failure past this point leaves the transaction PENDING: no
	// money has moved and the caller may retry or let it expire.
	intent, err := u.gateway.CreatePaymentIntent(ctx, total, u.currency, map[string]string{
		model.MetaTransactionID:   t.ID,
		model.MetaUserID:          userID,
		model.MetaTransactionType: model.TransactionTypeTagCoursePurchase,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent: %v", domain.ErrGatewayUnavailable, err)
	}

	now := time.Now()
	items := make([]*model.PendingPurchaseItem, 0, len(courses))
	for _, c := range courses {
		items = append(items, &model.PendingPurchaseItem{
			ID:            uuid.NewString(),
			IntentID:      intent.IntentID,
			TransactionID: t.ID,
			UserID:        userID,
			CourseID:      c.ID,
			CourseName:    c.Name,
			Price:         c.Price,
			CreatedAt:     now,
		})
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.pending.SaveAll(ctx, tx, items)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("transaction_id", t.ID).Str("intent_id", intent.IntentID).
		Int64("amount", total).Int("courses", len(items)).Msg("purchase initiated")

	return &InitiatedPurchase{
		TransactionID: t.ID,
		IntentID:      intent.IntentID,
		ClientSecret:  intent.ClientSecret,
	}, nil
}

func (u *purchaseUC) Commit(ctx context.Context, intentID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		items, err := u.pending.FindByIntentID(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			// Already committed, already aborted, or an intent we never
			// staged. Nothing to promote either way.
			u.log.Debug().Str("intent_id", intentID).Msg("commit: no pending items")
			return nil
		}

		transactionID := items[0].TransactionID
		flipped, err := u.transactions.UpdateStatusIfPending(ctx, tx, transactionID, model.TransactionStatusSuccess)
		if err != nil {
			return err
		}
		if !flipped {
			u.log.Info().Str("intent_id", intentID).Str("transaction_id", transactionID).
				Msg("commit: transaction already terminal, skipping")
			return nil
		}
		metrics.IncTransaction(string(model.TransactionTypePurchase), string(model.TransactionStatusSuccess))

		now := time.Now()
		purchase := &model.UserPurchase{
			ID:            uuid.NewString(),
			UserID:        items[0].UserID,
			TransactionID: transactionID,
			IntentID:      intentID,
			CreatedAt:     now,
		}
		names := make([]string, 0, len(items))
		for _, it := range items {
			purchase.Total += it.Price
			purchase.Items = append(purchase.Items, model.PurchaseItem{
				ID:         uuid.NewString(),
				PurchaseID: purchase.ID,
				CourseID:   it.CourseID,
				CourseName: it.CourseName,
				Price:      it.Price,
			})
			names = append(names, it.CourseName)
		}
		if err := u.purchases.Save(ctx, tx, purchase); err != nil {
			return err
		}
		if err := u.pending.DeleteByIntentID(ctx, tx, intentID); err != nil {
			return err
		}

		if err := u.enqueue(ctx, tx, model.RoutingKeyEnrollment, model.EnrollmentMessage{
			UserID:    purchase.UserID,
			CourseIDs: purchase.CourseIDs(),
			Status:    "granted",
			Timestamp: now,
		}); err != nil {
			return err
		}
		if err := u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
			UserID:      purchase.UserID,
			EventType:   "purchase_succeeded",
			Amount:      purchase.Total,
			Currency:    u.currency,
			CourseNames: names,
		}); err != nil {
			return err
		}

		metrics.AddRevenue(u.currency, purchase.Total)
		u.log.Info().Str("intent_id", intentID).Str("purchase_id", purchase.ID).
			Int("items", len(purchase.Items)).Msg("purchase committed")
		return nil
	})
}

func (u *purchaseUC) Abort(ctx context.Context, intentID string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		items, err := u.pending.FindByIntentID(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			u.log.Debug().Str("intent_id", intentID).Msg("abort: no pending items")
			return nil
		}

		transactionID := items[0].TransactionID
		flipped, err := u.transactions.UpdateStatusIfPending(ctx, tx, transactionID, model.TransactionStatusFailed)
		if err != nil {
			return err
		}
		if !flipped {
			u.log.Info().Str("intent_id", intentID).Str("transaction_id", transactionID).
				Msg("abort: transaction already terminal, skipping")
			return nil
		}
		metrics.IncTransaction(string(model.TransactionTypePurchase), string(model.TransactionStatusFailed))

		var total int64
		names := make([]string, 0, len(items))
		for _, it := range items {
			total += it.Price
			names = append(names, it.CourseName)
		}
		if err := u.enqueue(ctx, tx, model.RoutingKeyNotification, model.NotificationMessage{
			UserID:      items[0].UserID,
			EventType:   "purchase_failed",
			Amount:      total,
			Currency:    u.currency,
			CourseNames: names,
		}); err != nil {
			return err
		}
		if err := u.pending.DeleteByIntentID(ctx, tx, intentID); err != nil {
			return err
		}

		u.log.Info().Str("intent_id", intentID).Str("transaction_id", transactionID).Msg("purchase aborted")
		return nil
	})
}

func (u *purchaseUC) enqueue(ctx context.Context, tx repository.Tx, routingKey string, payload interface{}) error {
	m, err := newOutboxMessage(routingKey, payload)
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, m)
}
