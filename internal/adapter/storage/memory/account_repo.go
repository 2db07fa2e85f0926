package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository in memory.
type AccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	locks    *lockTable
	now      func() time.Time
}

// NewAccountRepo creates a new empty AccountRepo.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		accounts: make(map[uuid.UUID]*domain.Account),
		locks:    newLockTable(),
		now:      time.Now,
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Balances = a.Balances.Clone()
	return &cp
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.UserID]; ok {
		return fmt.Errorf("insert account %s: %w", account.UserID, domain.ErrConflict)
	}
	r.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (r *AccountRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

// GetByUserIDForUpdate blocks until the account row is free, then holds it
// until tx ends. A missing account returns nil, nil without locking.
func (r *AccountRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	_, ok := r.accounts[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if err := r.locks.acquire(ctx, mtx, userID.String()); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// UpdateBalances stages the new balances; they become visible on Commit.
func (r *AccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if !mtx.holds(account.UserID.String()) {
		return fmt.Errorf("update balances for %s: row not locked by this transaction", account.UserID)
	}

	r.mu.RLock()
	stored, ok := r.accounts[account.UserID]
	var storedVersion int64
	if ok {
		storedVersion = stored.LockVersion
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("update balances for %s: account not found", account.UserID)
	}
	if storedVersion != account.LockVersion {
		return fmt.Errorf("update balances for %s: lock version mismatch (stored %d, have %d)",
			account.UserID, storedVersion, account.LockVersion)
	}

	account.LockVersion++
	account.UpdatedAt = r.now()
	staged := cloneAccount(account)

	return mtx.stage(func() {
		r.mu.Lock()
		r.accounts[staged.UserID] = staged
		r.mu.Unlock()
	})
}
