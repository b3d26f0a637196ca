package usecase

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/repository"
)

var _ RevenueUseCase = (*revenueUC)(nil)

// RevenueSummary is the platform's ledger-derived earnings snapshot.
// Income covers the platform cut of all settled inflows, deduction the cut
// returned through refunds. All amounts are minor currency units.
type RevenueSummary struct {
	Income    int64   `json:"income"`
	Deduction int64   `json:"deduction"`
	Net       int64   `json:"net"`
	CutRate   float64 `json:"cut_rate"`
}

type RevenueUseCase interface {
	Summary(ctx context.Context) (*RevenueSummary, error)
}

type revenueUC struct {
	transactions repository.TransactionRepository
	cutRate      float64
	log          *zerolog.Logger
}

func NewRevenueUseCase(transactions repository.TransactionRepository, cutRate float64, log *zerolog.Logger) *revenueUC {
	return &revenueUC{transactions: transactions, cutRate: cutRate, log: log}
}

// Summary recomputes from the ledger on every call. The ledger is the
// source of truth, so no running counters to drift.
func (u *revenueUC) Summary(ctx context.Context) (*RevenueSummary, error) {
	var gross int64
	for _, typ := range []model.TransactionType{
		model.TransactionTypePurchase,
		model.TransactionTypeSubscriptionPayment,
		model.TransactionTypeRenewal,
	} {
		sum, err := u.transactions.SumByTypeAndStatus(ctx, nil, typ, model.TransactionStatusSuccess)
		if err != nil {
			return nil, err
		}
		gross += sum
	}

	refunded, err := u.transactions.SumByTypeAndStatus(ctx, nil, model.TransactionTypeRefund, model.TransactionStatusSuccess)
	if err != nil {
		return nil, err
	}

	income := cut(gross, u.cutRate)
	deduction := cut(refunded, u.cutRate)
	return &RevenueSummary{
		Income:    income,
		Deduction: deduction,
		Net:       income - deduction,
		CutRate:   u.cutRate,
	}, nil
}

func cut(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}
