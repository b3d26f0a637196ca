package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidState        = errors.New("entity is not in a valid state for this operation")
	ErrRefundWindowExpired = errors.New("refund window has expired")
	ErrCatalogUnavailable  = errors.New("course catalog returned no valid courses")
	ErrGatewayUnavailable  = errors.New("payment gateway request failed")
	ErrSignatureInvalid    = errors.New("webhook signature verification failed")

	// Infrastructure errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context passed to repository")
)
