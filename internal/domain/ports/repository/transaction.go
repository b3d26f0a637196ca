package repository

import (
	"context"
	"time"

	"lms-payments/internal/domain/model"
)

// TransactionRepository persists the money ledger.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	// ListPendingOlderThan returns PENDING transactions created before the
	// cutoff, oldest first, at most limit rows. The reconciler uses it to
	// find transactions whose settling webhook never arrived.
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Transaction, error)
	// UpdateStatusIfPending atomically flips the status only when the row is
	// still PENDING and reports whether a row was affected. This is the
	// single-fire transition primitive: a false return means some earlier
	// delivery already settled the transaction.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.TransactionStatus) (bool, error)
	// SumByTypeAndStatus returns the total amount over the whole ledger for
	// one transaction type and status.
	SumByTypeAndStatus(ctx context.Context, tx Tx, typ model.TransactionType, status model.TransactionStatus) (int64, error)
}
