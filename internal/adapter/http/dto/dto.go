package dto

import (
	"time"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"

	"github.com/shopspring/decimal"
)

// QuoteRequest is the request body for a venue quote.
type QuoteRequest struct {
	From   string          `json:"from" binding:"required,max=10"`
	To     string          `json:"to" binding:"required,max=10"`
	Amount decimal.Decimal `json:"amount"`
}

// TradeRequest is the request body for executing a quote.
type TradeRequest struct {
	QuoteID string `json:"quote_id" binding:"required,max=64,safe_id"`
}

// QuoteResponse is the venue's priced offer.
type QuoteResponse struct {
	QuoteID   string  `json:"quote_id,omitempty"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    string  `json:"amount"`
	Rate      string  `json:"rate"`
	Fee       string  `json:"fee"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	Available bool    `json:"available"`
	Message   string  `json:"message"`
}

// TradeResponse is the venue's execute outcome.
type TradeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
}

// OpenAccountRequest is the request body for opening an account. A missing
// user_id is generated.
type OpenAccountRequest struct {
	UserID   string                     `json:"user_id" binding:"omitempty,uuid"`
	Balances map[string]decimal.Decimal `json:"balances"`
}

// AccountResponse is a Balance Store record.
type AccountResponse struct {
	UserID      string            `json:"user_id"`
	Balances    map[string]string `json:"balances"`
	LockVersion int64             `json:"lock_version"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// ConversionRequest is the request body for a currency conversion.
type ConversionRequest struct {
	UserID       string          `json:"user_id" binding:"required,uuid"`
	FromCurrency string          `json:"from_currency" binding:"required,max=10"`
	ToCurrency   string          `json:"to_currency" binding:"required,max=10"`
	Amount       decimal.Decimal `json:"amount"`
}

// ConversionResponse is the settled conversion.
type ConversionResponse struct {
	ConversionID    string            `json:"conversion_id"`
	UserID          string            `json:"user_id"`
	FromCurrency    string            `json:"from_currency"`
	ToCurrency      string            `json:"to_currency"`
	Amount          string            `json:"amount"`
	ConvertedAmount string            `json:"converted_amount"`
	Rate            string            `json:"rate"`
	Fee             string            `json:"fee"`
	QuoteID         string            `json:"quote_id"`
	TransactionID   string            `json:"transaction_id"`
	Balances        map[string]string `json:"balances"`
}

// CreatePaymentRequest is the request body for payment creation. The
// idempotency key travels in the Idempotency-Key header.
type CreatePaymentRequest struct {
	UserID      string          `json:"user_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"required,max=10"`
	Description string          `json:"description" binding:"max=255"`
}

// UpdatePaymentStatusRequest is the request body for a status transition.
type UpdatePaymentStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Message string `json:"message" binding:"max=255"`
}

// PaymentResponse is the response body for payment results.
type PaymentResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// OutboxPendingResponse reports how many events await publication.
type OutboxPendingResponse struct {
	Pending int64 `json:"pending"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatBalances(b domain.Balances) map[string]string {
	out := make(map[string]string, len(b))
	for cur, amt := range b {
		out[string(cur)] = amt.StringFixed(domain.MoneyScale)
	}
	return out
}

// NewQuoteResponse converts a domain.Quote to its DTO.
func NewQuoteResponse(q *domain.Quote) QuoteResponse {
	resp := QuoteResponse{
		QuoteID:   q.QuoteID,
		From:      string(q.From),
		To:        string(q.To),
		Amount:    q.Amount.StringFixed(domain.MoneyScale),
		Rate:      q.Rate.String(),
		Fee:       q.Fee.StringFixed(domain.MoneyScale),
		Available: q.Available,
		Message:   q.Message,
	}
	if q.Available {
		s := formatTime(q.ExpiresAt)
		resp.ExpiresAt = &s
	}
	return resp
}

// NewTradeResponse converts a domain.TradeResult to its DTO.
func NewTradeResponse(r *domain.TradeResult) TradeResponse {
	return TradeResponse{Success: r.Success, TransactionID: r.TransactionID, Message: r.Message}
}

// NewAccountResponse converts a domain.Account to its DTO.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		UserID:      a.UserID.String(),
		Balances:    formatBalances(a.Balances),
		LockVersion: a.LockVersion,
		CreatedAt:   formatTime(a.CreatedAt),
		UpdatedAt:   formatTime(a.UpdatedAt),
	}
}

// NewConversionResponse converts a settled conversion to its DTO.
func NewConversionResponse(r *ports.ConversionResult) ConversionResponse {
	return ConversionResponse{
		ConversionID:    r.ConversionID.String(),
		UserID:          r.UserID.String(),
		FromCurrency:    string(r.From),
		ToCurrency:      string(r.To),
		Amount:          r.Amount.StringFixed(domain.MoneyScale),
		ConvertedAmount: r.ConvertedAmount.StringFixed(domain.MoneyScale),
		Rate:            r.Rate.String(),
		Fee:             r.Fee.StringFixed(domain.MoneyScale),
		QuoteID:         r.QuoteID,
		TransactionID:   r.TransactionID,
		Balances:        formatBalances(r.Balances),
	}
}

// NewPaymentResponse converts a domain.Payment to its DTO.
func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		Amount:      p.Amount.StringFixed(domain.MoneyScale),
		Currency:    string(p.Currency),
		Status:      string(p.Status),
		Description: p.Description,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}
