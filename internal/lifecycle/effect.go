// Package lifecycle creates transactions and moves them between statuses,
// applying or rolling back their balance effect exactly once.
package lifecycle

import (
	"github.com/shopspring/decimal"

	"investment-core/internal/domain"
)

// EffectOf returns the signed change to balance[mode] caused by moving a
// transaction of type t and amount from one status to another.
//
//	any      -> approved : +amount for credits, -amount for debits
//	approved -> pending  : the exact inverse
//	approved -> declined / in progress : rejected, roll back first
//	same status          : rejected as a no-op
//	anything else        : zero
//
// A transaction holds its effect exactly while it is approved, so the
// rollback never reverses something that was not applied. The result is
// never applied here; the ledger enforces the floor.
func EffectOf(from, to domain.Status, t domain.TxType, amount decimal.Decimal) (decimal.Decimal, error) {
	if from == to {
		return decimal.Zero, domain.ErrNoOpTransition
	}

	switch {
	case to == domain.StatusApproved:
		return signed(t, amount), nil
	case from == domain.StatusApproved && to == domain.StatusPending:
		return signed(t, amount).Neg(), nil
	case from == domain.StatusApproved:
		return decimal.Zero, domain.ErrInvalidTransition
	default:
		return decimal.Zero, nil
	}
}

func signed(t domain.TxType, amount decimal.Decimal) decimal.Decimal {
	switch {
	case t.Credits():
		return amount
	case t.Debits():
		return amount.Neg()
	default:
		return decimal.Zero
	}
}
