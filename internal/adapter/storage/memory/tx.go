// Package memory is an in-process storage driver. It honours the same
// contract as the postgres adapter: rows read "for update" stay exclusively
// locked until the owning transaction ends, and writes staged through a
// transaction become visible only on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotMemoryTx is returned when a repository receives a transaction that
// was not started by this package's Transactor.
var ErrNotMemoryTx = errors.New("memory: transaction was not started by memory.Transactor")

// Transactor implements ports.DBTransactor.
type Transactor struct{}

// NewTransactor creates a new in-memory Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// Begin starts a new in-memory transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{held: make(map[string]struct{})}, nil
}

// Tx is an in-memory pgx.Tx. It does not execute SQL.
type Tx struct {
	mu       sync.Mutex
	closed   bool
	held     map[string]struct{}
	unlocks  []func()
	onCommit []func()
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrNotMemoryTx
	}
	return t, nil
}

func (t *Tx) stage(apply func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.onCommit = append(t.onCommit, apply)
	return nil
}

func (t *Tx) holds(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[key]
	return ok
}

func (t *Tx) addLock(key string, unlock func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		unlock()
		return pgx.ErrTxClosed
	}
	t.held[key] = struct{}{}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

// end applies staged writes when commit is true and always releases locks.
func (t *Tx) end(commit bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.closed = true
	writes, unlocks := t.onCommit, t.unlocks
	t.onCommit, t.unlocks = nil, nil
	t.mu.Unlock()

	if commit {
		for _, apply := range writes {
			apply()
		}
	}
	for i := len(unlocks) - 1; i >= 0; i-- {
		unlocks[i]()
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error   { return t.end(true) }
func (t *Tx) Rollback(ctx context.Context) error { return t.end(false) }

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory: nested transactions are not supported")
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNoSQL
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}
func (t *Tx) Conn() *pgx.Conn { return nil }

var errNoSQL = errors.New("memory: transaction does not execute SQL")

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }

// lockTable hands out exclusive, context-aware row locks keyed by string.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (l *lockTable) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// acquire blocks until key is free or ctx ends. The lock is owned by tx and
// released when tx commits or rolls back. Re-acquiring inside the same tx is
// a no-op.
func (l *lockTable) acquire(ctx context.Context, tx *Tx, key string) error {
	if tx.holds(key) {
		return nil
	}
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire row lock %s: %w", key, ctx.Err())
	}
	return tx.addLock(key, func() { <-ch })
}
