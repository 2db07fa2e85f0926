// Package rabbitmq delivers outbox rows to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"currency-conversion-service/config"
	"currency-conversion-service/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher sends one message and reports once the broker confirmed it.
type publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
	Close() error
}

// Producer implements ports.EventProducer. The routing key is the event
// type, so consumers bind only to the facts they care about
// (e.g. "PAYMENT_*" or "CONVERSION_COMPLETED").
type Producer struct {
	pub      publisher
	exchange string
}

// NewProducer dials the broker, declares the durable topic exchange and puts
// the channel into confirm mode.
func NewProducer(cfg config.RabbitMQConfig) (*Producer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &Producer{
		pub:      &confirmingChannel{conn: conn, ch: ch},
		exchange: cfg.Exchange,
	}, nil
}

// Publishing builds the AMQP message for one outbox row. MessageId carries
// the outbox id for consumer-side dedupe.
func Publishing(ev *domain.OutboxEvent) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatInt(ev.ID, 10),
		Type:         ev.EventType,
		Timestamp:    ev.CreatedAt,
		Headers: amqp.Table{
			"aggregate_type": ev.AggregateType,
			"aggregate_id":   ev.AggregateID,
		},
		Body: ev.Payload,
	}
}

// Publish sends ev routed by its event type.
func (p *Producer) Publish(ctx context.Context, ev *domain.OutboxEvent) error {
	if ev == nil {
		return errors.New("rabbitmq publish: nil event")
	}
	if err := p.pub.Publish(ctx, p.exchange, ev.EventType, Publishing(ev)); err != nil {
		return fmt.Errorf("rabbitmq publish %s to %s: %w", ev.EventType, p.exchange, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Producer) Close() error {
	return p.pub.Close()
}

type confirmingChannel struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (c *confirmingChannel) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("broker nacked message")
	}
	return nil
}

func (c *confirmingChannel) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}
