package repository

import (
	"context"

	"lms-payments/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	SetGatewayCustomerID(ctx context.Context, tx Tx, userID, customerID string) error
}
