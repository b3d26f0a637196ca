package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

const outboxColumns = `id, exchange, routing_key, payload, status, attempts, next_attempt_at, published_at, created_at`

func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, m *model.OutboxMessage) error {
	const q = `
INSERT INTO outbox_messages (` + outboxColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.Exchange, m.RoutingKey, m.Payload, m.Status, m.Attempts, m.NextAttemptAt, m.PublishedAt, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// ClaimPending locks due rows with SKIP LOCKED so concurrent relays never
// double-publish from the same batch.
func (r *outboxRepo) ClaimPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + outboxColumns + `
  FROM outbox_messages
 WHERE status = 'PENDING' AND next_attempt_at <= NOW()
 ORDER BY id
 LIMIT $1
 FOR UPDATE SKIP LOCKED;`

	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.OutboxMessage
	for rows.Next() {
		m := new(model.OutboxMessage)
		if err := rows.Scan(&m.ID, &m.Exchange, &m.RoutingKey, &m.Payload, &m.Status, &m.Attempts, &m.NextAttemptAt, &m.PublishedAt, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE outbox_messages SET status='PUBLISHED', published_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, nextAttemptAt time.Time) error {
	const q = `UPDATE outbox_messages SET attempts=attempts+1, next_attempt_at=$2 WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, nextAttemptAt); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
