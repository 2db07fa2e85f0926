package ports

import (
	"context"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- External Collaborator Ports ---

// Venue is the external rate/execution venue.
type Venue interface {
	GetQuote(ctx context.Context, from, to domain.Currency, amount decimal.Decimal) (*domain.Quote, error)
	ExecuteTrade(ctx context.Context, quoteID string) (*domain.TradeResult, error)
}

// QuoteStore holds the venue's issued quotes.
type QuoteStore interface {
	Save(ctx context.Context, quote *domain.Quote) error
	// Take removes and returns a quote atomically. Returns nil, nil if absent.
	Take(ctx context.Context, quoteID string) (*domain.Quote, error)
}

// EventProducer delivers one outbox row to the event stream.
type EventProducer interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
	Close() error
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// ConversionService is the Conversion Transaction Engine.
type ConversionService interface {
	Convert(ctx context.Context, req ConversionRequest) (*ConversionResult, error)
}

// ConversionRequest holds input for a conversion.
type ConversionRequest struct {
	UserID uuid.UUID
	From   domain.Currency
	To     domain.Currency
	Amount decimal.Decimal
}

// ConversionResult is returned by a successful conversion.
type ConversionResult struct {
	ConversionID    uuid.UUID
	UserID          uuid.UUID
	From            domain.Currency
	To              domain.Currency
	Amount          decimal.Decimal
	ConvertedAmount decimal.Decimal
	Rate            decimal.Decimal
	Fee             decimal.Decimal
	QuoteID         string
	TransactionID   string
	Balances        domain.Balances
}

// AccountService opens and reads Balance Store records.
type AccountService interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
}

// OpenAccountRequest holds input for account opening.
type OpenAccountRequest struct {
	UserID   uuid.UUID // uuid.Nil = generate
	Balances domain.Balances
}

// PaymentService defines the payment write path.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, req UpdatePaymentStatusRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       domain.Currency
	Description    string
	IdempotencyKey string
}

// UpdatePaymentStatusRequest moves a payment along its lifecycle.
type UpdatePaymentStatusRequest struct {
	PaymentID uuid.UUID
	Status    domain.PaymentStatus
	Message   string
}

// OutboxMonitor exposes read-only outbox state.
type OutboxMonitor interface {
	PendingCount(ctx context.Context) (int64, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
