// Package kafka delivers outbox rows to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"currency-conversion-service/config"
	"currency-conversion-service/internal/core/domain"

	"github.com/segmentio/kafka-go"
)

// Header names carried on every message so consumers can dedupe and route
// without decoding the value.
const (
	HeaderOutboxID      = "outbox_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements ports.EventProducer on a kafka-go Writer. Messages are
// keyed by aggregate id, so every event of one payment or account lands on
// the same partition in order.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a Producer for cfg.Topic. The writer connects lazily on
// the first Publish.
func NewProducer(cfg config.KafkaConfig) *Producer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: true,
		},
		topic: cfg.Topic,
	}
}

func newProducerWithWriter(w messageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// Message builds the Kafka record for one outbox row.
func Message(ev *domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderOutboxID, Value: []byte(strconv.FormatInt(ev.ID, 10))},
			{Key: HeaderEventType, Value: []byte(ev.EventType)},
			{Key: HeaderAggregateType, Value: []byte(ev.AggregateType)},
		},
	}
}

// Publish writes ev and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, ev *domain.OutboxEvent) error {
	if ev == nil {
		return errors.New("kafka publish: nil event")
	}
	if err := p.writer.WriteMessages(ctx, Message(ev)); err != nil {
		return fmt.Errorf("kafka publish %s to %s: %w", ev.EventType, p.topic, err)
	}
	return nil
}

// Close flushes pending writes and releases connections.
func (p *Producer) Close() error {
	return p.writer.Close()
}
