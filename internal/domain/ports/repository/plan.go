package repository

import (
	"context"

	"lms-payments/internal/domain/model"
)

type SubscriptionPlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
	// Deactivate soft-deactivates; plans are never deleted while referenced.
	Deactivate(ctx context.Context, tx Tx, id string) error
}
