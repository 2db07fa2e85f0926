package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// ParsePaymentStatus validates a status string.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch st := PaymentStatus(s); st {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusRefunded:
		return st, true
	}
	return "", false
}

// CanTransitionTo reports whether s may move to next.
// COMPLETED is terminal for processing but may still be refunded.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EventType returns the outbox event type announcing a move into s.
func (s PaymentStatus) EventType() string {
	switch s {
	case PaymentStatusProcessing:
		return EventPaymentProcessing
	case PaymentStatusCompleted:
		return EventPaymentCompleted
	case PaymentStatusFailed:
		return EventPaymentFailed
	case PaymentStatusRefunded:
		return EventPaymentRefunded
	default:
		return EventPaymentInitiated
	}
}

// Payment is a user payment whose lifecycle facts are published via the outbox.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       Currency        `json:"currency"`
	Status         PaymentStatus   `json:"status"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the payment can no longer change status.
// COMPLETED is not terminal because it may still be refunded.
func (p *Payment) IsTerminal() bool {
	return len(paymentTransitions[p.Status]) == 0
}

// BuildIdempotencyKey scopes a client-supplied key to its user.
func BuildIdempotencyKey(userID uuid.UUID, key string) string {
	return userID.String() + ":" + key
}
