package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNegativeBalance is returned by Account.Debit when the debit would take a
// balance below zero.
var ErrNegativeBalance = errors.New("balance would become negative")

// ErrConflict is wrapped by repositories when an insert collides with a
// unique key (an existing account, a reused idempotency key).
var ErrConflict = errors.New("conflicting record already exists")

// Balances maps a currency to its amount (two decimal places, never negative).
type Balances map[Currency]decimal.Decimal

// Clone returns a deep copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Account is one user's multi-currency balance record.
type Account struct {
	UserID      uuid.UUID `json:"user_id"`
	Balances    Balances  `json:"balances"`
	LockVersion int64     `json:"lock_version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAccount builds an account seeded with the given balances.
func NewAccount(userID uuid.UUID, seed Balances, now time.Time) (*Account, error) {
	balances := make(Balances, len(seed))
	for cur, amt := range seed {
		if !cur.IsSupported() {
			return nil, fmt.Errorf("unsupported currency %q", cur)
		}
		if amt.IsNegative() {
			return nil, fmt.Errorf("seed balance for %s is negative", cur)
		}
		if !HasMoneyScale(amt) {
			return nil, fmt.Errorf("seed balance for %s has more than %d decimal places", cur, MoneyScale)
		}
		balances[cur] = amt
	}
	return &Account{
		UserID:    userID,
		Balances:  balances,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Balance returns the balance held in currency c (zero when absent).
func (a *Account) Balance(c Currency) decimal.Decimal {
	if a.Balances == nil {
		return decimal.Zero
	}
	return a.Balances[c]
}

// HasFunds reports whether at least amount is available in currency c.
func (a *Account) HasFunds(c Currency, amount decimal.Decimal) bool {
	return a.Balance(c).GreaterThanOrEqual(amount)
}

// Debit removes amount from currency c.
func (a *Account) Debit(c Currency, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must not be negative")
	}
	next := a.Balance(c).Sub(amount)
	if next.IsNegative() {
		return ErrNegativeBalance
	}
	a.set(c, next)
	return nil
}

// Credit adds amount to currency c.
func (a *Account) Credit(c Currency, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit amount must not be negative")
	}
	a.set(c, a.Balance(c).Add(amount))
	return nil
}

func (a *Account) set(c Currency, v decimal.Decimal) {
	if a.Balances == nil {
		a.Balances = make(Balances)
	}
	a.Balances[c] = v
}
