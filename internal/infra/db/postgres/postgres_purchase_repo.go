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

var (
	_ repository.PendingPurchaseItemRepository = (*pendingItemRepo)(nil)
	_ repository.PurchaseRepository            = (*purchaseRepo)(nil)
)

type pendingItemRepo struct{ pool *pgxpool.Pool }

func NewPendingItemRepo(pool *pgxpool.Pool) *pendingItemRepo {
	return &pendingItemRepo{pool: pool}
}

func (r *pendingItemRepo) SaveAll(ctx context.Context, tx repository.Tx, items []*model.PendingPurchaseItem) error {
	const q = `
INSERT INTO pending_purchase_items (id, intent_id, transaction_id, user_id, course_id, course_name, price, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	for _, it := range items {
		if _, err := execSQL(ctx, r.pool, tx, q, it.ID, it.IntentID, it.TransactionID, it.UserID, it.CourseID, it.CourseName, it.Price, it.CreatedAt); err != nil {
			if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
				return err
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *pendingItemRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) ([]*model.PendingPurchaseItem, error) {
	q := `SELECT id, intent_id, transaction_id, user_id, course_id, course_name, price, created_at FROM pending_purchase_items WHERE intent_id=$1 ORDER BY created_at`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", intentID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PendingPurchaseItem
	for rows.Next() {
		it := new(model.PendingPurchaseItem)
		if err := rows.Scan(&it.ID, &it.IntentID, &it.TransactionID, &it.UserID, &it.CourseID, &it.CourseName, &it.Price, &it.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *pendingItemRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.PendingPurchaseItem, error) {
	const q = `SELECT id, intent_id, transaction_id, user_id, course_id, course_name, price, created_at FROM pending_purchase_items WHERE transaction_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PendingPurchaseItem
	for rows.Next() {
		it := new(model.PendingPurchaseItem)
		if err := rows.Scan(&it.ID, &it.IntentID, &it.TransactionID, &it.UserID, &it.CourseID, &it.CourseName, &it.Price, &it.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *pendingItemRepo) DeleteByIntentID(ctx context.Context, tx repository.Tx, intentID string) error {
	const q = `DELETE FROM pending_purchase_items WHERE intent_id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, intentID); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.UserPurchase) error {
	const q = `
INSERT INTO user_purchases (id, user_id, transaction_id, intent_id, total, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.TransactionID, p.IntentID, p.Total, p.CreatedAt); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}

	const qi = `
INSERT INTO purchase_items (id, purchase_id, course_id, course_name, price)
VALUES ($1,$2,$3,$4,$5);`
	for _, it := range p.Items {
		if _, err := execSQL(ctx, r.pool, tx, qi, it.ID, p.ID, it.CourseID, it.CourseName, it.Price); err != nil {
			if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
				return err
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *purchaseRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.UserPurchase, error) {
	const q = `SELECT id, user_id, transaction_id, intent_id, total, created_at FROM user_purchases WHERE intent_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	p := &model.UserPurchase{}
	if err := row.Scan(&p.ID, &p.UserID, &p.TransactionID, &p.IntentID, &p.Total, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := r.loadItems(ctx, tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UserPurchase, error) {
	const q = `SELECT id, user_id, transaction_id, intent_id, total, created_at FROM user_purchases WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.UserPurchase
	for rows.Next() {
		p := new(model.UserPurchase)
		if err := rows.Scan(&p.ID, &p.UserID, &p.TransactionID, &p.IntentID, &p.Total, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	for _, p := range out {
		if err := r.loadItems(ctx, tx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *purchaseRepo) loadItems(ctx context.Context, tx repository.Tx, p *model.UserPurchase) error {
	const q = `SELECT id, purchase_id, course_id, course_name, price FROM purchase_items WHERE purchase_id=$1;`
	rows, err := queryRows(ctx, r.pool, tx, q, p.ID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	defer rows.Close()
	for rows.Next() {
		var it model.PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.CourseID, &it.CourseName, &it.Price); err != nil {
			return domain.ErrReadDatabaseRow
		}
		p.Items = append(p.Items, it)
	}
	return nil
}
