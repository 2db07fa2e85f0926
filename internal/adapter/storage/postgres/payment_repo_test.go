package postgres

import (
	"context"
	"testing"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentCols() []string {
	return []string{"id", "user_id", "amount", "currency", "status", "description", "idempotency_key", "created_at", "updated_at"}
}

func newTestPayment() *domain.Payment {
	key := "order-1"
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Amount:         decimal.RequireFromString("25.50"),
		Currency:       domain.CurrencyEUR,
		Status:         domain.PaymentStatusPending,
		Description:    "invoice 7",
		IdempotencyKey: &key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func paymentRow(p *domain.Payment) *pgxmock.Rows {
	return pgxmock.NewRows(paymentCols()).AddRow(
		p.ID, p.UserID, p.Amount, p.Currency, p.Status,
		p.Description, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(p.ID, p.UserID, p.Amount, p.Currency, p.Status,
			p.Description, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create_DuplicateKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_payments_user_idempotency"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, newTestPayment())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPaymentRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(p.ID).
		WillReturnRows(paymentRow(p))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, p.Amount.Equal(got.Amount))
	assert.Equal(t, domain.CurrencyEUR, got.Currency)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	mock.ExpectQuery("SELECT .+ FROM payments").WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPaymentRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectQuery("SELECT .+ FROM payments WHERE user_id .+ AND idempotency_key").
		WithArgs(p.UserID, "order-1").
		WillReturnRows(paymentRow(p))

	got, err := repo.GetByIdempotencyKey(context.Background(), p.UserID, "order-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "order-1", *got.IdempotencyKey)
}

func TestPaymentRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE id .+ FOR UPDATE").
		WithArgs(p.ID).
		WillReturnRows(paymentRow(p))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByIDForUpdate(context.Background(), tx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs(domain.PaymentStatusProcessing, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(context.Background(), tx, id, domain.PaymentStatusProcessing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, uuid.New(), domain.PaymentStatusFailed)
	assert.ErrorContains(t, err, "payment not found")
}
