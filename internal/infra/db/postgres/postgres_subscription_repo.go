package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_id, transaction_id, gateway_subscription_id, gateway_invoice_id, gateway_refund_id, status, period_start, period_end, auto_renew, canceled_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscriptionPayment) error {
	const q = `
INSERT INTO user_subscription_payments (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  gateway_invoice_id=$6, gateway_refund_id=$7, status=$8, period_start=$9, period_end=$10, auto_renew=$11, canceled_at=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.TransactionID, s.GatewaySubscriptionID, s.GatewayInvoiceID, s.GatewayRefundID,
		s.Status, s.PeriodStart, s.PeriodEnd, s.AutoRenew, s.CanceledAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscriptionPayment, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscription_payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.one(ctx, tx, q+";", id)
}

func (r *subscriptionRepo) FindByGatewaySubscriptionID(ctx context.Context, tx repository.Tx, gatewaySubID string) (*model.UserSubscriptionPayment, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscription_payments WHERE gateway_subscription_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.one(ctx, tx, q+";", gatewaySubID)
}

func (r *subscriptionRepo) one(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.UserSubscriptionPayment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s := &model.UserSubscriptionPayment{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.TransactionID, &s.GatewaySubscriptionID, &s.GatewayInvoiceID, &s.GatewayRefundID,
		&s.Status, &s.PeriodStart, &s.PeriodEnd, &s.AutoRenew, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

// UpdateStatusIfActive flips ACTIVE to a terminal status. The WHERE clause
// keeps terminal states irreversible and CANCELED/REFUNDED mutually
// exclusive: the second flip of any kind affects zero rows.
func (r *subscriptionRepo) UpdateStatusIfActive(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, canceledAt time.Time) (bool, error) {
	const q = `
UPDATE user_subscription_payments
   SET status = $2, canceled_at = $3, auto_renew = FALSE, updated_at = NOW()
 WHERE id = $1
   AND status = 'ACTIVE';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, canceledAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) ExtendPeriod(ctx context.Context, tx repository.Tx, id string, periodEnd time.Time, gatewayInvoiceID string) error {
	const q = `UPDATE user_subscription_payments SET period_end=$2, gateway_invoice_id=$3, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, periodEnd, gatewayInvoiceID); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) SetGatewayRefundID(ctx context.Context, tx repository.Tx, id string, refundID string) error {
	const q = `UPDATE user_subscription_payments SET gateway_refund_id=$2, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, refundID); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
