package usecase

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"lms-payments/internal/domain/model"
)

// newOutboxMessage wraps a payload for durable publication. ULID ids keep
// the relay draining in creation order.
func newOutboxMessage(routingKey string, payload interface{}) (*model.OutboxMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &model.OutboxMessage{
		ID:            ulid.Make().String(),
		Exchange:      model.ExchangeEvents,
		RoutingKey:    routingKey,
		Payload:       b,
		Status:        model.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}
