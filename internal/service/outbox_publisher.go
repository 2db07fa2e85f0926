package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"currency-conversion-service/config"
	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/apperror"
	"currency-conversion-service/pkg/logger"

	"github.com/rs/zerolog"
)

// OutboxPublisher relays unpublished outbox rows to the event stream.
// Delivery is at-least-once: a row is marked published only after the
// producer acknowledged it, so a crash in between re-sends it.
type OutboxPublisher struct {
	repo     ports.OutboxRepository
	producer ports.EventProducer
	cfg      config.OutboxConfig
	log      zerolog.Logger
	now      func() time.Time

	// serialises runs so one row is never in flight twice from this process
	mu sync.Mutex
}

// NewOutboxPublisher creates a new OutboxPublisher.
func NewOutboxPublisher(repo ports.OutboxRepository, producer ports.EventProducer, cfg config.OutboxConfig, log zerolog.Logger) *OutboxPublisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &OutboxPublisher{
		repo:     repo,
		producer: producer,
		cfg:      cfg,
		log:      logger.Component(log, "outbox_publisher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run waits InitialDelay, then publishes pending rows every Interval until
// ctx is done.
func (p *OutboxPublisher) Run(ctx context.Context) {
	p.log.Info().
		Dur("initial_delay", p.cfg.InitialDelay).
		Dur("interval", p.cfg.Interval).
		Int("batch_size", p.cfg.BatchSize).
		Msg("outbox publisher started")
	defer p.log.Info().Msg("outbox publisher stopped")

	if p.cfg.InitialDelay > 0 {
		timer := time.NewTimer(p.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.PublishPending(ctx); err != nil && ctx.Err() == nil {
			p.log.Error().Err(err).Msg("outbox run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PublishPending drains the whole unpublished backlog, oldest first, one
// page of BatchSize rows at a time. A row that fails to send stays
// unpublished and is retried on a later run; the rows after it are still
// attempted, including those on later pages. It returns how many rows were
// marked published.
func (p *OutboxPublisher) PublishPending(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		after                      domain.OutboxCursor
		fetched, published, failed int
	)
	for ctx.Err() == nil {
		events, err := p.repo.FetchUnpublished(ctx, after, p.cfg.BatchSize)
		if err != nil {
			return published, fmt.Errorf("fetch unpublished events: %w", err)
		}
		fetched += len(events)

		ok, bad := p.publishPage(ctx, events)
		published += ok
		failed += bad

		if len(events) < p.cfg.BatchSize {
			break
		}
		after = events[len(events)-1].Cursor()
	}

	if fetched > 0 {
		p.log.Debug().
			Int("fetched", fetched).
			Int("published", published).
			Int("failed", failed).
			Msg("outbox run finished")
	}

	return published, ctx.Err()
}

func (p *OutboxPublisher) publishPage(ctx context.Context, events []domain.OutboxEvent) (published, failed int) {
	for i := range events {
		if ctx.Err() != nil {
			return published, failed
		}
		ev := &events[i]
		log := p.log.With().
			Int64("outbox_id", ev.ID).
			Str("event_type", ev.EventType).
			Str("aggregate_id", ev.AggregateID).
			Logger()

		if err := p.producer.Publish(ctx, ev); err != nil {
			failed++
			log.Warn().Err(apperror.ErrDeliveryFailure(err)).Msg("outbox event delivery failed, will retry")
			continue
		}

		ok, err := p.repo.MarkPublished(ctx, ev.ID, p.now())
		if err != nil {
			// Sent but not marked: the next run sends it again.
			failed++
			log.Warn().Err(err).Msg("outbox event sent but not marked published")
			continue
		}
		if !ok {
			log.Debug().Msg("outbox event already marked published")
			continue
		}
		published++
	}
	return published, failed
}

// PendingCount reports how many rows are still waiting for delivery.
func (p *OutboxPublisher) PendingCount(ctx context.Context) (int64, error) {
	n, err := p.repo.CountUnpublished(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count unpublished events: %w", err))
	}
	return n, nil
}
