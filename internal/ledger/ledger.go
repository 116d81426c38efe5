// Package ledger holds the per-user, per-currency balance rules.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"investment-core/internal/domain"
	"investment-core/pkg/db"
)

// Currency is a supported balance currency code.
type Currency string

const (
	BTC Currency = "BTC"
	ETH Currency = "ETH"
	SOL Currency = "SOL"
	TRX Currency = "TRX"
	BNB Currency = "BNB"
	XRP Currency = "XRP"
)

// Supported lists every currency a user holds a balance entry for.
var Supported = []Currency{BTC, ETH, SOL, TRX, BNB, XRP}

// ParseCurrency matches case-insensitively against Supported.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range Supported {
		if c == sc {
			return c, true
		}
	}
	return "", false
}

// Codes returns the supported currency codes as strings.
func Codes() []string {
	out := make([]string, len(Supported))
	for i, c := range Supported {
		out[i] = string(c)
	}
	return out
}

// Balance is a user's per-currency balance snapshot.
type Balance map[Currency]decimal.Decimal

// Zero returns a balance with every supported currency at zero.
func Zero() Balance {
	b := make(Balance, len(Supported))
	for _, c := range Supported {
		b[c] = decimal.Zero
	}
	return b
}

// Get returns the balance for c, zero when absent.
func (b Balance) Get(c Currency) decimal.Decimal {
	if v, ok := b[c]; ok {
		return v
	}
	return decimal.Zero
}

// Covers reports whether b holds at least amount of c.
func (b Balance) Covers(c Currency, amount decimal.Decimal) bool {
	return b.Get(c).GreaterThanOrEqual(amount)
}

// Apply adds delta to current and refuses to go below zero.
func Apply(current, delta decimal.Decimal) (decimal.Decimal, error) {
	next := current.Add(delta)
	if next.IsNegative() {
		return current, domain.ErrInsufficientBalance.Withf(
			"insufficient balance: need %s, have %s", delta.Neg().String(), current.String())
	}
	return next, nil
}

// Credit adds amount to current.
func Credit(current, amount decimal.Decimal) (decimal.Decimal, error) {
	return Apply(current, amount)
}

// Debit subtracts amount from current.
func Debit(current, amount decimal.Decimal) (decimal.Decimal, error) {
	return Apply(current, amount.Neg())
}

// Store is the persistence the ledger reads and writes through. Both
// *db.Queries bound to a database and to a transaction satisfy it.
type Store interface {
	ListBalances(ctx context.Context, userID string) ([]db.Balance, error)
	GetBalance(ctx context.Context, userID, currency string) (db.Balance, error)
	UpdateBalance(ctx context.Context, userID, currency string, amount decimal.Decimal, version int64) error
}

// Snapshot reads the full balance map of a user, filling missing
// currencies with zero.
func Snapshot(ctx context.Context, s Store, userID string) (Balance, error) {
	rows, err := s.ListBalances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	b := Zero()
	for _, r := range rows {
		if c, ok := ParseCurrency(r.Currency); ok {
			b[c] = r.Amount
		}
	}
	return b, nil
}

// Adjust applies delta to one balance row with an optimistic version check
// and returns the new amount. A zero delta is a read.
func Adjust(ctx context.Context, s Store, userID string, c Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	row, err := s.GetBalance(ctx, userID, string(c))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return decimal.Zero, domain.ErrNotFound.Withf("balance %s for user %s not found", c, userID)
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	if delta.IsZero() {
		return row.Amount, nil
	}

	next, err := Apply(row.Amount, delta)
	if err != nil {
		return row.Amount, err
	}

	if err := s.UpdateBalance(ctx, userID, string(c), next, row.Version); err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return row.Amount, domain.ErrConcurrencyConflict.Wrap(err)
		}
		return row.Amount, fmt.Errorf("update balance: %w", err)
	}
	return next, nil
}
