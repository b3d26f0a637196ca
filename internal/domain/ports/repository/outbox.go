package repository

import (
	"context"
	"time"

	"lms-payments/internal/domain/model"
)

// OutboxRepository stores outbound events durably. Enqueue is always called
// with the same Tx as the ledger mutation that produced the event.
type OutboxRepository interface {
	Enqueue(ctx context.Context, tx Tx, m *model.OutboxMessage) error
	// ClaimPending returns up to limit PENDING rows whose next attempt is
	// due, oldest first, locking them against concurrent relays.
	ClaimPending(ctx context.Context, tx Tx, limit int) ([]*model.OutboxMessage, error)
	MarkPublished(ctx context.Context, tx Tx, id string) error
	MarkFailed(ctx context.Context, tx Tx, id string, nextAttemptAt time.Time) error
}
