package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, repo *AccountRepo, usd string) *domain.Account {
	t.Helper()
	acc, err := domain.NewAccount(uuid.New(), domain.Balances{
		domain.CurrencyUSD: decimal.RequireFromString(usd),
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), acc))
	return acc
}

func TestAccountRepo_CreateDuplicate(t *testing.T) {
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "10.00")

	err := repo.Create(context.Background(), acc)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAccountRepo_GetReturnsCopy(t *testing.T) {
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "10.00")

	got, err := repo.GetByUserID(context.Background(), acc.UserID)
	require.NoError(t, err)
	got.Balances[domain.CurrencyUSD] = decimal.NewFromInt(999)

	again, _ := repo.GetByUserID(context.Background(), acc.UserID)
	assert.True(t, decimal.RequireFromString("10").Equal(again.Balance(domain.CurrencyUSD)))
}

func TestAccountRepo_MissingAccount(t *testing.T) {
	repo := NewAccountRepo()
	ctx := context.Background()
	tx, _ := NewTransactor().Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	acc, err := repo.GetByUserIDForUpdate(ctx, tx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, acc)
}

func TestAccountRepo_WritesVisibleOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "100.00")

	tx, err := NewTransactor().Begin(ctx)
	require.NoError(t, err)

	locked, err := repo.GetByUserIDForUpdate(ctx, tx, acc.UserID)
	require.NoError(t, err)
	require.NoError(t, locked.Debit(domain.CurrencyUSD, decimal.NewFromInt(40)))
	require.NoError(t, repo.UpdateBalances(ctx, tx, locked))
	assert.Equal(t, int64(1), locked.LockVersion)

	before, _ := repo.GetByUserID(ctx, acc.UserID)
	assert.True(t, decimal.NewFromInt(100).Equal(before.Balance(domain.CurrencyUSD)))

	require.NoError(t, tx.Commit(ctx))

	after, _ := repo.GetByUserID(ctx, acc.UserID)
	assert.True(t, decimal.NewFromInt(60).Equal(after.Balance(domain.CurrencyUSD)))
	assert.Equal(t, int64(1), after.LockVersion)
}

func TestAccountRepo_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "100.00")

	tx, _ := NewTransactor().Begin(ctx)
	locked, _ := repo.GetByUserIDForUpdate(ctx, tx, acc.UserID)
	require.NoError(t, locked.Debit(domain.CurrencyUSD, decimal.NewFromInt(40)))
	require.NoError(t, repo.UpdateBalances(ctx, tx, locked))
	require.NoError(t, tx.Rollback(ctx))

	after, _ := repo.GetByUserID(ctx, acc.UserID)
	assert.True(t, decimal.NewFromInt(100).Equal(after.Balance(domain.CurrencyUSD)))
	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
}

func TestAccountRepo_UpdateRequiresLock(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "1.00")

	tx, _ := NewTransactor().Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	assert.Error(t, repo.UpdateBalances(ctx, tx, acc))
}

func TestAccountRepo_StaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "1.00")

	tx, _ := NewTransactor().Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	locked, _ := repo.GetByUserIDForUpdate(ctx, tx, acc.UserID)
	locked.LockVersion = 7
	err := repo.UpdateBalances(ctx, tx, locked)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock version mismatch")
}

func TestAccountRepo_LockSerializesTransactions(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "100.00")
	txr := NewTransactor()

	first, _ := txr.Begin(ctx)
	_, err := repo.GetByUserIDForUpdate(ctx, first, acc.UserID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, _ := txr.Begin(ctx)
		defer second.Rollback(ctx) //nolint:errcheck
		_, _ = repo.GetByUserIDForUpdate(ctx, second, acc.UserID)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Commit(ctx))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the lock")
	}
}

func TestAccountRepo_LockHonoursContext(t *testing.T) {
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "100.00")
	txr := NewTransactor()

	holder, _ := txr.Begin(context.Background())
	defer holder.Rollback(context.Background()) //nolint:errcheck
	_, err := repo.GetByUserIDForUpdate(context.Background(), holder, acc.UserID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, _ := txr.Begin(context.Background())
	defer waiter.Rollback(context.Background()) //nolint:errcheck

	_, err = repo.GetByUserIDForUpdate(ctx, waiter, acc.UserID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAccountRepo_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	acc := seedAccount(t, repo, "100.00")
	txr := NewTransactor()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, _ := txr.Begin(ctx)
			defer tx.Rollback(ctx) //nolint:errcheck

			a, err := repo.GetByUserIDForUpdate(ctx, tx, acc.UserID)
			if err != nil {
				return
			}
			if err := a.Debit(domain.CurrencyUSD, decimal.NewFromInt(30)); err != nil {
				return
			}
			if err := repo.UpdateBalances(ctx, tx, a); err != nil {
				return
			}
			if tx.Commit(ctx) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final, _ := repo.GetByUserID(ctx, acc.UserID)
	assert.Equal(t, 3, succeeded)
	assert.True(t, decimal.NewFromInt(10).Equal(final.Balance(domain.CurrencyUSD)))
	assert.Equal(t, int64(3), final.LockVersion)
}

func TestOutboxRepo_CommitAndOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepo()
	txr := NewTransactor()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tx, _ := txr.Begin(ctx)
	late := &domain.OutboxEvent{EventType: "B", CreatedAt: base.Add(time.Second)}
	early := &domain.OutboxEvent{EventType: "A", CreatedAt: base}
	require.NoError(t, repo.Create(ctx, tx, late))
	require.NoError(t, repo.Create(ctx, tx, early))
	assert.Equal(t, int64(1), late.ID)
	assert.Equal(t, int64(2), early.ID)

	n, _ := repo.CountUnpublished(ctx)
	assert.Zero(t, n, "uncommitted rows must not be visible")

	require.NoError(t, tx.Commit(ctx))

	rows, err := repo.FetchUnpublished(ctx, domain.OutboxCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].EventType)
	assert.Equal(t, "B", rows[1].EventType)

	limited, _ := repo.FetchUnpublished(ctx, domain.OutboxCursor{}, 1)
	require.Len(t, limited, 1)

	next, err := repo.FetchUnpublished(ctx, limited[0].Cursor(), 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "B", next[0].EventType)

	rest, _ := repo.FetchUnpublished(ctx, next[0].Cursor(), 1)
	assert.Empty(t, rest)
}

func TestOutboxRepo_RollbackDropsRow(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepo()

	tx, _ := NewTransactor().Begin(ctx)
	require.NoError(t, repo.Create(ctx, tx, &domain.OutboxEvent{EventType: "X", CreatedAt: time.Now()}))
	require.NoError(t, tx.Rollback(ctx))

	assert.Empty(t, repo.All())
}

func TestOutboxRepo_MarkPublishedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepo()

	tx, _ := NewTransactor().Begin(ctx)
	ev := &domain.OutboxEvent{EventType: "X", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, tx, ev))
	require.NoError(t, tx.Commit(ctx))

	at := time.Now()
	ok, err := repo.MarkPublished(ctx, ev.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPublished(ctx, ev.ID, at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	rows := repo.All()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Published)
	assert.True(t, at.Equal(*rows[0].PublishedAt))

	n, _ := repo.CountUnpublished(ctx)
	assert.Zero(t, n)
}

func TestOutboxRepo_RejectsForeignTx(t *testing.T) {
	repo := NewOutboxRepo()
	err := repo.Create(context.Background(), nil, &domain.OutboxEvent{})
	assert.ErrorIs(t, err, ErrNotMemoryTx)
}

func newPayment(key *string) *domain.Payment {
	now := time.Now()
	return &domain.Payment{
		ID:             uuid.New(),
		UserID:         uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Amount:         decimal.RequireFromString("25.00"),
		Currency:       domain.CurrencyUSD,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPaymentRepo_IdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo()
	txr := NewTransactor()
	key := "order-1"

	tx, _ := txr.Begin(ctx)
	first := newPayment(&key)
	require.NoError(t, repo.Create(ctx, tx, first))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := txr.Begin(ctx)
	defer tx2.Rollback(ctx) //nolint:errcheck
	err := repo.Create(ctx, tx2, newPayment(&key))
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := repo.GetByIdempotencyKey(ctx, first.UserID, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestPaymentRepo_RollbackReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo()
	txr := NewTransactor()
	key := "order-2"

	tx, _ := txr.Begin(ctx)
	require.NoError(t, repo.Create(ctx, tx, newPayment(&key)))
	require.NoError(t, tx.Rollback(ctx))

	tx2, _ := txr.Begin(ctx)
	p := newPayment(&key)
	require.NoError(t, repo.Create(ctx, tx2, p))
	require.NoError(t, tx2.Commit(ctx))

	got, _ := repo.GetByIdempotencyKey(ctx, p.UserID, key)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
}

func TestPaymentRepo_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo()
	txr := NewTransactor()

	tx, _ := txr.Begin(ctx)
	p := newPayment(nil)
	require.NoError(t, repo.Create(ctx, tx, p))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := txr.Begin(ctx)
	locked, err := repo.GetByIDForUpdate(ctx, tx2, p.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	require.NoError(t, repo.UpdateStatus(ctx, tx2, p.ID, domain.PaymentStatusProcessing))

	before, _ := repo.GetByID(ctx, p.ID)
	assert.Equal(t, domain.PaymentStatusPending, before.Status)

	require.NoError(t, tx2.Commit(ctx))
	after, _ := repo.GetByID(ctx, p.ID)
	assert.Equal(t, domain.PaymentStatusProcessing, after.Status)
}

func TestPaymentRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo()

	p, err := repo.GetByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, p)

	tx, _ := NewTransactor().Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck
	p, err = repo.GetByIDForUpdate(ctx, tx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestAuditRepo_Create(t *testing.T) {
	repo := NewAuditRepo()
	require.NoError(t, repo.Create(context.Background(), &domain.AuditLog{Action: domain.AuditActionConversion}))

	logs := repo.List()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionConversion, logs[0].Action)
}

func TestQuoteStore_TakeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewQuoteStore(time.Minute)
	q := &domain.Quote{QuoteID: "Q-1", ExpiresAt: time.Now().Add(30 * time.Second)}
	require.NoError(t, store.Save(ctx, q))

	got, err := store.Take(ctx, "Q-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Q-1", got.QuoteID)

	again, err := store.Take(ctx, "Q-1")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestQuoteStore_ConcurrentTakeSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewQuoteStore(time.Minute)
	require.NoError(t, store.Save(ctx, &domain.Quote{QuoteID: "Q-1", ExpiresAt: time.Now().Add(time.Minute)}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q, _ := store.Take(ctx, "Q-1"); q != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestQuoteStore_SweepsLongExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewQuoteStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &domain.Quote{QuoteID: "old", ExpiresAt: now.Add(-2 * time.Minute)}))
	require.NoError(t, store.Save(ctx, &domain.Quote{QuoteID: "recent", ExpiresAt: now.Add(-10 * time.Second)}))
	require.NoError(t, store.Save(ctx, &domain.Quote{QuoteID: "new", ExpiresAt: now.Add(30 * time.Second)}))

	assert.Equal(t, 2, store.Len())
	q, _ := store.Take(ctx, "recent")
	assert.NotNil(t, q, "recently expired quotes stay retrievable")
}
