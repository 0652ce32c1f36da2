package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"
)

type mockOrders struct {
	orders map[uuid.UUID]*domain.Order
}

func (m *mockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	return o, nil
}

type mockReconciler struct {
	mu         sync.Mutex
	err        error
	reconciled []uuid.UUID
}

func (m *mockReconciler) Reconcile(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reconciled = append(m.reconciled, order.ID)
	order.CartCleared = true
	return nil
}

func (m *mockReconciler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reconciled)
}

// chanReader feeds messages from a channel and fails once it is drained.
type chanReader struct {
	msgs chan kafkaGo.Message
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafkaGo.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkaGo.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error { return nil }

func orderMessage(t *testing.T, order *domain.Order) kafkaGo.Message {
	t.Helper()
	value, err := json.Marshal(domain.NewOrderCreatedEvent(order))
	require.NoError(t, err)
	return kafkaGo.Message{
		Key:     []byte(order.ID.String()),
		Value:   value,
		Headers: []kafkaGo.Header{{Key: "event_type", Value: []byte(domain.EventTypeOrderCreated)}},
	}
}

func newOrder(userID string) *domain.Order {
	return &domain.Order{
		ID:       uuid.New(),
		UserID:   userID,
		Consumed: []domain.ConsumedLine{{ProductID: 1, Version: 1}},
	}
}

func TestHandle_ReconcilesUnclearedOrder(t *testing.T) {
	order := newOrder("u1")
	rec := &mockReconciler{}
	c := NewOrderConsumer(&chanReader{}, &mockOrders{orders: map[uuid.UUID]*domain.Order{order.ID: order}}, rec, logger.Discard())

	c.handle(context.Background(), orderMessage(t, order))

	assert.DeepEqual(t, []uuid.UUID{order.ID}, rec.reconciled)
}

func TestHandle_SkipsClearedOrder(t *testing.T) {
	order := newOrder("u1")
	order.CartCleared = true
	rec := &mockReconciler{}
	c := NewOrderConsumer(&chanReader{}, &mockOrders{orders: map[uuid.UUID]*domain.Order{order.ID: order}}, rec, logger.Discard())

	c.handle(context.Background(), orderMessage(t, order))

	assert.Equal(t, 0, rec.count())
}

func TestHandle_IgnoresBadMessages(t *testing.T) {
	order := newOrder("u1")
	rec := &mockReconciler{}
	c := NewOrderConsumer(&chanReader{}, &mockOrders{orders: map[uuid.UUID]*domain.Order{order.ID: order}}, rec, logger.Discard())

	other := orderMessage(t, order)
	other.Headers = []kafkaGo.Header{{Key: "event_type", Value: []byte("order_shipped")}}

	for _, m := range []kafkaGo.Message{
		{Value: []byte(`{invalid json here!`)},
		{Value: []byte(`{"user_id":"u1"}`)},
		orderMessage(t, newOrder("unknown")),
		other,
	} {
		c.handle(context.Background(), m)
	}

	assert.Equal(t, 0, rec.count())
}

func TestHandle_ReconcileErrorIsSwallowed(t *testing.T) {
	order := newOrder("u1")
	rec := &mockReconciler{err: errors.New("mongo unavailable")}
	c := NewOrderConsumer(&chanReader{}, &mockOrders{orders: map[uuid.UUID]*domain.Order{order.ID: order}}, rec, logger.Discard())

	c.handle(context.Background(), orderMessage(t, order))

	assert.Equal(t, false, order.CartCleared)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	o1, o2 := newOrder("u1"), newOrder("u2")
	reader := &chanReader{msgs: make(chan kafkaGo.Message, 2)}
	reader.msgs <- orderMessage(t, o1)
	reader.msgs <- orderMessage(t, o2)
	rec := &mockReconciler{}
	c := NewOrderConsumer(reader, &mockOrders{orders: map[uuid.UUID]*domain.Order{o1.ID: o1, o2.ID: o2}}, rec, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	// Start Kafka container using testcontainers Kafka module
	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOrderConsumer_Kafka(t *testing.T) {
	if testing.Short() {
		t.Skip("kafka container test")
	}
	brokers, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	topic := "order-events"
	createTopic(t, brokers, topic)

	order := newOrder("123")
	rec := &mockReconciler{}
	reader := NewKafkaReader(topic, "cart-reconciler-test", brokers)
	c := NewOrderConsumer(reader, &mockOrders{orders: map[uuid.UUID]*domain.Order{order.ID: order}}, rec, logger.Discard())
	defer c.Close()

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, w.WriteMessages(ctx, orderMessage(t, order)))

	go c.Run(ctx)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 25*time.Second, 100*time.Millisecond)
	assert.DeepEqual(t, []uuid.UUID{order.ID}, rec.reconciled)
}
