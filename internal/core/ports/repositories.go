package ports

import (
	"context"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for the Balance Store.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	// GetByUserIDForUpdate holds an exclusive row lock until tx ends.
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error)
	// UpdateBalances writes account.Balances if the stored lock version still
	// equals account.LockVersion, then bumps account.LockVersion.
	UpdateBalances(ctx context.Context, tx pgx.Tx, account *domain.Account) error
}

// OutboxRepository defines the Outbox Store.
type OutboxRepository interface {
	// Create appends an event inside the business transaction and sets event.ID.
	Create(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	// FetchUnpublished returns up to limit unpublished rows positioned after
	// the cursor, oldest first.
	FetchUnpublished(ctx context.Context, after domain.OutboxCursor, limit int) ([]domain.OutboxEvent, error)
	// MarkPublished flips published=true for one row. It reports false when
	// the row was already published.
	MarkPublished(ctx context.Context, id int64, publishedAt time.Time) (bool, error)
	CountUnpublished(ctx context.Context) (int64, error)
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor abstracts starting a database transaction.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
