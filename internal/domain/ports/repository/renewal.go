package repository

import (
	"context"

	"lms-payments/internal/domain/model"
)

type RenewalRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Renewal) error
	ListBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.Renewal, error)
	// FindLatestByInvoiceID returns the most recent attempt row recorded for
	// a gateway invoice, or domain.ErrNotFound. The dispatcher uses it to
	// tell a replayed delivery (same invoice, same attempt) from a genuine
	// new payment attempt on the same invoice.
	FindLatestByInvoiceID(ctx context.Context, tx Tx, invoiceID string) (*model.Renewal, error)
}
