package model

import (
	"time"

	"lms-payments/internal/domain"
)

type TransactionType string

const (
	TransactionTypePurchase            TransactionType = "PURCHASE"
	TransactionTypeSubscriptionPayment TransactionType = "SUBSCRIPTION_PAYMENT"
	TransactionTypeRenewal             TransactionType = "RENEWAL"
	TransactionTypeRefund              TransactionType = "REFUND"
	TransactionTypePayout              TransactionType = "PAYOUT"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING" // created locally; gateway outcome not yet known
	TransactionStatusSuccess TransactionStatus = "SUCCESS" // gateway confirmed the money movement
	TransactionStatusFailed  TransactionStatus = "FAILED"  // gateway reported failure
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// Transaction is one row of the money ledger. Append-only once terminal:
// status is the only mutable field and transitions exactly once from PENDING.
type Transaction struct {
	ID        string // UUID
	UserID    string // UUID
	Type      TransactionType
	Amount    int64 // minor units (cents)
	Currency  string
	Status    TransactionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTransaction validates and constructs a PENDING ledger entry.
func NewTransaction(id, userID string, typ TransactionType, amount int64, currency string) (*Transaction, error) {
	if id == "" || userID == "" || amount <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Transaction{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Amount:    amount,
		Currency:  currency,
		Status:    TransactionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
