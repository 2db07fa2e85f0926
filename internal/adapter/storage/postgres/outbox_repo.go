package postgres

import (
	"context"
	"fmt"
	"time"

	"currency-conversion-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OutboxRepo implements ports.OutboxRepository.
type OutboxRepo struct {
	pool Pool
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

// Create inserts an event within the caller's transaction and sets e.ID.
func (r *OutboxRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	query := `INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, created_at, published)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		e.AggregateType, e.AggregateID, e.EventType, string(e.Payload), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished returns one page of unpublished events after the cursor,
// oldest first. The row comparison is served by idx_outbox_unpublished.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, after domain.OutboxCursor, limit int) ([]domain.OutboxEvent, error) {
	query := `SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, published, published_at
		FROM outbox_events
		WHERE published = FALSE AND (created_at, id) > ($1, $2)
		ORDER BY created_at ASC, id ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType,
			&e.Payload, &e.CreatedAt, &e.Published, &e.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished flips one row to published. The published = FALSE guard
// keeps publishedAt from being overwritten by a second publisher.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64, publishedAt time.Time) (bool, error) {
	query := `UPDATE outbox_events SET published = TRUE, published_at = $1
		WHERE id = $2 AND published = FALSE`

	tag, err := r.pool.Exec(ctx, query, publishedAt, id)
	if err != nil {
		return false, fmt.Errorf("mark outbox event published: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountUnpublished returns the publisher backlog.
func (r *OutboxRepo) CountUnpublished(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published = FALSE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unpublished events: %w", err)
	}
	return n, nil
}
