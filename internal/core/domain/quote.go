package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a time-boxed, single-use price offer issued by the venue.
type Quote struct {
	QuoteID   string          `json:"quote_id"`
	From      Currency        `json:"from"`
	To        Currency        `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Rate      decimal.Decimal `json:"rate"`
	Fee       decimal.Decimal `json:"fee"`
	ExpiresAt time.Time       `json:"expires_at"`
	Available bool            `json:"available"`
	Message   string          `json:"message"`
}

// IsExpired reports whether the quote can no longer be executed at now.
func (q *Quote) IsExpired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// TradeResult is the venue's answer to an execute request.
type TradeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
}
