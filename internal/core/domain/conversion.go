package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConvertedAmount applies the settlement formula
// round_half_up(amount*rate - fee, 2).
//
// decimal.Round rounds half away from zero, which equals half-up for the
// non-negative values a successful conversion produces.
func ConvertedAmount(amount, rate, fee decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Sub(fee).Round(MoneyScale)
}

// Conversion records a settled conversion. It is the payload of the
// CONVERSION_COMPLETED outbox event.
type Conversion struct {
	ID              uuid.UUID       `json:"conversion_id"`
	UserID          uuid.UUID       `json:"user_id"`
	From            Currency        `json:"from_currency"`
	To              Currency        `json:"to_currency"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Rate            decimal.Decimal `json:"rate"`
	Fee             decimal.Decimal `json:"fee"`
	QuoteID         string          `json:"quote_id"`
	TransactionID   string          `json:"venue_transaction_id"`
	CompletedAt     time.Time       `json:"completed_at"`
}
