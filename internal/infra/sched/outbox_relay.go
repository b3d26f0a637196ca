package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-payments/internal/domain/ports/adapter"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/infra/metrics"
)

// OutboxRelay drains the outbox to the broker. Claiming uses row locks, so
// multiple relay instances never publish the same row concurrently;
// redelivery after a crash between publish and mark is still possible, which
// is the at-least-once contract consumers sign up for.
type OutboxRelay struct {
	interval  time.Duration
	batchSize int
	outbox    repository.OutboxRepository
	publisher adapter.MessagePublisher
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewOutboxRelay(
	interval time.Duration,
	batchSize int,
	outbox repository.OutboxRepository,
	publisher adapter.MessagePublisher,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *OutboxRelay {
	relayLog := logger.With().Str("component", "OutboxRelay").Logger()
	return &OutboxRelay{
		interval:  interval,
		batchSize: batchSize,
		outbox:    outbox,
		publisher: publisher,
		tm:        tm,
		log:       &relayLog,
	}
}

func (w *OutboxRelay) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("Starting outbox relay")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			// Drain until the backlog is below one batch, so a burst does
			// not wait one tick per batch.
			for {
				n, err := w.drainOnce(ctx)
				if err != nil {
					w.log.Error().Err(err).Msg("outbox relay error")
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

// drainOnce claims and publishes one batch inside a single transaction and
// returns how many rows were claimed.
func (w *OutboxRelay) drainOnce(ctx context.Context) (int, error) {
	var claimed int
	err := w.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		msgs, err := w.outbox.ClaimPending(ctx, tx, w.batchSize)
		if err != nil {
			return err
		}
		claimed = len(msgs)
		metrics.SetOutboxClaimed(claimed)

		for _, m := range msgs {
			if err := w.publisher.Publish(ctx, m.Exchange, m.RoutingKey, m.Payload); err != nil {
				metrics.IncOutboxPublish("failure")
				w.log.Warn().Err(err).Str("message_id", m.ID).Str("routing_key", m.RoutingKey).
					Int("attempts", m.Attempts).Msg("publish failed, rescheduling")
				if err := w.outbox.MarkFailed(ctx, tx, m.ID, time.Now().Add(backoff(m.Attempts))); err != nil {
					return err
				}
				continue
			}
			metrics.IncOutboxPublish("success")
			if err := w.outbox.MarkPublished(ctx, tx, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// backoff grows exponentially from 5s and caps at 10m.
func backoff(attempts int) time.Duration {
	d := 5 * time.Second
	for i := 0; i < attempts && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}
