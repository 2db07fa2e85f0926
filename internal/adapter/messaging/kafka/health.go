package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// HealthCheck implements ports.HealthChecker for the Kafka cluster.
type HealthCheck struct {
	brokers []string
	dial    func(ctx context.Context, network, address string) (*kafka.Conn, error)
}

// NewHealthCheck creates a Kafka health checker.
func NewHealthCheck(brokers []string) *HealthCheck {
	return &HealthCheck{brokers: brokers, dial: kafka.DialContext}
}

// Ping succeeds when any one broker accepts a connection.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if len(h.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, b := range h.brokers {
		conn, err := h.dial(ctx, "tcp", b)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b, err))
			continue
		}
		_ = conn.Close()
		return nil
	}
	return errors.Join(errs...)
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "kafka"
}
