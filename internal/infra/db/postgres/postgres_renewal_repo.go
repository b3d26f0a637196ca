package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/repository"
)

var _ repository.RenewalRepository = (*renewalRepo)(nil)

type renewalRepo struct{ pool *pgxpool.Pool }

func NewRenewalRepo(pool *pgxpool.Pool) *renewalRepo {
	return &renewalRepo{pool: pool}
}

const renewalColumns = `id, subscription_id, transaction_id, gateway_invoice_id, status, retry_count, next_attempt_at, period_start, period_end, created_at`

func (r *renewalRepo) Save(ctx context.Context, tx repository.Tx, m *model.Renewal) error {
	const q = `
INSERT INTO renewals (` + renewalColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.SubscriptionID, m.TransactionID, m.GatewayInvoiceID, m.Status, m.RetryCount, m.NextAttemptAt, m.PeriodStart, m.PeriodEnd, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *renewalRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Renewal, error) {
	const q = `SELECT ` + renewalColumns + ` FROM renewals WHERE subscription_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Renewal
	for rows.Next() {
		m := new(model.Renewal)
		if err := rows.Scan(&m.ID, &m.SubscriptionID, &m.TransactionID, &m.GatewayInvoiceID, &m.Status, &m.RetryCount, &m.NextAttemptAt, &m.PeriodStart, &m.PeriodEnd, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *renewalRepo) FindLatestByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.Renewal, error) {
	const q = `SELECT ` + renewalColumns + ` FROM renewals WHERE gateway_invoice_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	m := &model.Renewal{}
	if err := row.Scan(&m.ID, &m.SubscriptionID, &m.TransactionID, &m.GatewayInvoiceID, &m.Status, &m.RetryCount, &m.NextAttemptAt, &m.PeriodStart, &m.PeriodEnd, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}
