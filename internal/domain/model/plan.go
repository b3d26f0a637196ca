package model

import (
	"time"

	"lms-payments/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleAnnual  BillingCycle = "ANNUAL"
)

// SubscriptionPlan represents a purchasable recurring plan. Read-mostly;
// deactivation is a soft flag, plans are never deleted while referenced.
type SubscriptionPlan struct {
	ID             string
	Name           string
	Amount         int64 // minor units per billing cycle
	Currency       string
	Cycle          BillingCycle
	Active         bool
	GatewayPriceID string // gateway-side price reference used to create subscriptions
	CreatedAt      time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan validates and constructs an active plan.
func NewSubscriptionPlan(id, name string, amount int64, currency string, cycle BillingCycle, gatewayPriceID string) (*SubscriptionPlan, error) {
	if id == "" || name == "" || amount <= 0 || currency == "" || gatewayPriceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if cycle != BillingCycleMonthly && cycle != BillingCycleAnnual {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPlan{
		ID:             id,
		Name:           name,
		Amount:         amount,
		Currency:       currency,
		Cycle:          cycle,
		Active:         true,
		GatewayPriceID: gatewayPriceID,
		CreatedAt:      time.Now(),
	}, nil
}
