//go:build integration

package rabbitmq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"currency-conversion-service/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRabbitMQ(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-management",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestIntegration_ProducerDeliversToBoundQueue(t *testing.T) {
	ctx := context.Background()
	url := startRabbitMQ(t, ctx)

	p, err := NewProducer(configFor(url))
	require.NoError(t, err)
	defer p.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "PAYMENT_*", "payment-events", false, nil))
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, p.Publish(pctx, &domain.OutboxEvent{
		ID: 1, AggregateID: "pay-1", EventType: domain.EventPaymentInitiated, Payload: []byte(`{}`),
	}))
	// Not matched by the binding.
	require.NoError(t, p.Publish(pctx, &domain.OutboxEvent{
		ID: 2, AggregateID: "user-1", EventType: domain.EventConversionCompleted, Payload: []byte(`{}`),
	}))

	select {
	case m := <-msgs:
		assert.Equal(t, "1", m.MessageId)
		assert.Equal(t, domain.EventPaymentInitiated, m.RoutingKey)
	case <-time.After(10 * time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case m := <-msgs:
		t.Fatalf("unexpected message %s", m.RoutingKey)
	case <-time.After(500 * time.Millisecond):
	}
}
