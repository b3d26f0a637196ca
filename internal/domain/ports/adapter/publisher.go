package adapter

import "context"

// MessagePublisher delivers one message to the broker. Implementations are
// at-least-once; consumers must be idempotent.
type MessagePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}
