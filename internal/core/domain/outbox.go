package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate types recorded on outbox rows.
const (
	AggregatePayment = "PAYMENT"
	AggregateAccount = "ACCOUNT"
)

// Event types.
const (
	EventPaymentInitiated    = "PAYMENT_INITIATED"
	EventPaymentProcessing   = "PAYMENT_PROCESSING"
	EventPaymentCompleted    = "PAYMENT_COMPLETED"
	EventPaymentFailed       = "PAYMENT_FAILED"
	EventPaymentRefunded     = "PAYMENT_REFUNDED"
	EventConversionCompleted = "CONVERSION_COMPLETED"
)

// OutboxEvent is an append-only record of a domain fact awaiting delivery to
// the event stream. Published flips false->true exactly once.
type OutboxEvent struct {
	ID            int64      `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       []byte     `json:"payload"`
	CreatedAt     time.Time  `json:"created_at"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// OutboxCursor is a position in the (created_at, id) publish order. The zero
// value sorts before every row.
type OutboxCursor struct {
	CreatedAt time.Time
	ID        int64
}

// Cursor returns the position of e in the publish order.
func (e *OutboxEvent) Cursor() OutboxCursor {
	return OutboxCursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

// Before reports whether c sorts strictly before e.
func (c OutboxCursor) Before(e *OutboxEvent) bool {
	if !c.CreatedAt.Equal(e.CreatedAt) {
		return c.CreatedAt.Before(e.CreatedAt)
	}
	return c.ID < e.ID
}

// NewOutboxEvent serialises payload and builds an unpublished outbox row.
// The ID is assigned by the store.
func NewOutboxEvent(aggregateType, aggregateID, eventType string, payload any, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     now,
	}, nil
}

// PaymentEvent is the value written to the event stream for payment facts.
type PaymentEvent struct {
	PaymentID uuid.UUID       `json:"paymentId"`
	UserID    uuid.UUID       `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  Currency        `json:"currency"`
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message"`
}

// NewPaymentEvent builds the stream value for a payment fact.
func NewPaymentEvent(p *Payment, eventType, message string, now time.Time) PaymentEvent {
	return PaymentEvent{
		PaymentID: p.ID,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		EventType: eventType,
		Timestamp: now,
		Message:   message,
	}
}
