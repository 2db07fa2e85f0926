package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HealthCheck implements ports.HealthChecker by opening a short-lived
// connection to the broker.
type HealthCheck struct {
	url string
}

// NewHealthCheck creates a RabbitMQ health checker.
func NewHealthCheck(url string) *HealthCheck {
	return &HealthCheck{url: url}
}

// Ping dials the broker. amqp.Dial takes no context, so ctx only bounds
// how long the caller waits.
func (h *HealthCheck) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(h.url)
		if err == nil {
			err = conn.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "rabbitmq"
}
