package postgres

import (
	"context"
	"errors"
	"fmt"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, amount, currency, status, description, idempotency_key, created_at, updated_at`

// Create inserts a payment within a transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, p.Status,
		p.Description, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert payment %s: %w", p.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by ID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.getOne(ctx, r.pool.QueryRow(ctx, query, id), "get payment by id")
}

// GetByIdempotencyKey looks up a payment by the client-supplied key.
func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 AND idempotency_key = $2`
	return r.getOne(ctx, r.pool.QueryRow(ctx, query, userID, key), "get payment by idempotency key")
}

// GetByIDForUpdate fetches a payment with pessimistic locking.
// This MUST be called within a transaction.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, tx.QueryRow(ctx, query, id), "get payment for update")
}

// UpdateStatus sets a payment's status within a transaction.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

func (r *PaymentRepo) getOne(_ context.Context, row pgx.Row, op string) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Status,
		&p.Description, &p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
