package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository. Balances are stored as a
// JSONB object of currency code to decimal string.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `user_id, balances, lock_version, created_at, updated_at`

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	balances, err := json.Marshal(a.Balances)
	if err != nil {
		return fmt.Errorf("encode balances: %w", err)
	}

	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err = r.pool.Exec(ctx, query, a.UserID, string(balances), a.LockVersion, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert account %s: %w", a.UserID, domain.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByUserID fetches an account without locking.
func (r *AccountRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetByUserIDForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	a, err := scanAccount(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// UpdateBalances writes a.Balances guarded by the lock version read under
// FOR UPDATE, then advances a.LockVersion.
func (r *AccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	balances, err := json.Marshal(a.Balances)
	if err != nil {
		return fmt.Errorf("encode balances: %w", err)
	}

	now := time.Now().UTC()
	query := `UPDATE accounts
		SET balances = $1, lock_version = lock_version + 1, updated_at = $2
		WHERE user_id = $3 AND lock_version = $4`

	tag, err := tx.Exec(ctx, query, string(balances), now, a.UserID, a.LockVersion)
	if err != nil {
		return fmt.Errorf("update account balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found or lock version %d is stale", a.UserID, a.LockVersion)
	}

	a.LockVersion++
	a.UpdatedAt = now
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a   domain.Account
		raw []byte
	)
	if err := row.Scan(&a.UserID, &raw, &a.LockVersion, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Balances = make(domain.Balances)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a.Balances); err != nil {
			return nil, fmt.Errorf("decode balances: %w", err)
		}
	}
	return &a, nil
}
