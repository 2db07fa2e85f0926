package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OutboxRepo implements ports.OutboxRepository in memory.
type OutboxRepo struct {
	mu     sync.RWMutex
	seq    int64
	events []*domain.OutboxEvent
}

// NewOutboxRepo creates a new empty OutboxRepo.
func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

// Create assigns the next id immediately (like a sequence) and appends the
// row when tx commits.
func (r *OutboxRepo) Create(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.seq++
	event.ID = r.seq
	r.mu.Unlock()

	row := *event
	row.Payload = append([]byte(nil), event.Payload...)
	return mtx.stage(func() {
		r.mu.Lock()
		r.events = append(r.events, &row)
		r.mu.Unlock()
	})
}

func (r *OutboxRepo) FetchUnpublished(ctx context.Context, after domain.OutboxCursor, limit int) ([]domain.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.OutboxEvent
	for _, e := range r.events {
		if !e.Published && after.Before(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64, publishedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		if e.Published {
			return false, nil
		}
		at := publishedAt
		e.Published = true
		e.PublishedAt = &at
		return true, nil
	}
	return false, nil
}

func (r *OutboxRepo) CountUnpublished(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.events {
		if !e.Published {
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every committed row in insertion order.
func (r *OutboxRepo) All() []domain.OutboxEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}
