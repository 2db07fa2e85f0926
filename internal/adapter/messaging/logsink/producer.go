// Package logsink is an outbox sink that writes events to the application
// log. It is meant for local runs without a broker.
package logsink

import (
	"context"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/pkg/logger"

	"github.com/rs/zerolog"
)

// Producer implements ports.EventProducer by logging each event.
type Producer struct {
	log zerolog.Logger
}

func NewProducer(log zerolog.Logger) *Producer {
	return &Producer{log: logger.Component(log, "event_stream")}
}

func (p *Producer) Publish(ctx context.Context, ev *domain.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.Info().
		Int64("outbox_id", ev.ID).
		Str("key", ev.AggregateID).
		Str("event_type", ev.EventType).
		RawJSON("value", ev.Payload).
		Msg("event published")
	return nil
}

func (p *Producer) Close() error { return nil }
