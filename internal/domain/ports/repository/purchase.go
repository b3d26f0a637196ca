package repository

import (
	"context"

	"lms-payments/internal/domain/model"
)

// PendingPurchaseItemRepository stages unconfirmed purchase line items.
type PendingPurchaseItemRepository interface {
	SaveAll(ctx context.Context, tx Tx, items []*model.PendingPurchaseItem) error
	// FindByIntentID locks the rows when called inside a transaction.
	FindByIntentID(ctx context.Context, tx Tx, intentID string) ([]*model.PendingPurchaseItem, error)
	// FindByTransactionID resolves the staged items, and through them the
	// gateway intent, for a ledger transaction.
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) ([]*model.PendingPurchaseItem, error)
	DeleteByIntentID(ctx context.Context, tx Tx, intentID string) error
}

// PurchaseRepository persists committed purchases and their line items.
type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.UserPurchase) error
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.UserPurchase, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.UserPurchase, error)
}
