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

// PaymentRepo implements ports.PaymentRepository in memory.
type PaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
	// keyed by domain.BuildIdempotencyKey, including rows staged but not yet committed
	idem  map[string]uuid.UUID
	locks *lockTable
	now   func() time.Time
}

// NewPaymentRepo creates a new empty PaymentRepo.
func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{
		payments: make(map[uuid.UUID]*domain.Payment),
		idem:     make(map[string]uuid.UUID),
		locks:    newLockTable(),
		now:      time.Now,
	}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.IdempotencyKey != nil {
		k := *p.IdempotencyKey
		cp.IdempotencyKey = &k
	}
	return &cp
}

func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	var idemKey string
	if payment.IdempotencyKey != nil {
		idemKey = domain.BuildIdempotencyKey(payment.UserID, *payment.IdempotencyKey)
	}

	r.mu.Lock()
	if _, ok := r.payments[payment.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("insert payment %s: %w", payment.ID, domain.ErrConflict)
	}
	if idemKey != "" {
		if _, ok := r.idem[idemKey]; ok {
			r.mu.Unlock()
			return fmt.Errorf("insert payment idempotency key: %w", domain.ErrConflict)
		}
		// reserve now; released if tx rolls back
		r.idem[idemKey] = payment.ID
	}
	r.mu.Unlock()

	staged := clonePayment(payment)
	if idemKey != "" {
		if err := mtx.addLock("idem:"+idemKey, func() {
			r.mu.Lock()
			if _, committed := r.payments[staged.ID]; !committed {
				delete(r.idem, idemKey)
			}
			r.mu.Unlock()
		}); err != nil {
			return err
		}
	}
	return mtx.stage(func() {
		r.mu.Lock()
		r.payments[staged.ID] = staged
		r.mu.Unlock()
	})
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idem[domain.BuildIdempotencyKey(userID, key)]
	if !ok {
		return nil, nil
	}
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	_, ok := r.payments[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if err := r.locks.acquire(ctx, mtx, id.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if !mtx.holds(id.String()) {
		return fmt.Errorf("update payment %s: row not locked by this transaction", id)
	}

	now := r.now()
	return mtx.stage(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if p, ok := r.payments[id]; ok {
			p.Status = status
			p.UpdatedAt = now
		}
	})
}
