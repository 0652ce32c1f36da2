package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// OutboxStore is the part of the order store the poller works on.
type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
	ListUnclearedOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
}

// Reconciler finishes the cart clear of a stored order.
type Reconciler interface {
	Reconcile(ctx context.Context, order *domain.Order) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	EventTick     time.Duration
	RecoveryTick  time.Duration
	RecoveryGrace time.Duration
	BatchSize     int
}

// OutboxPoller publishes stored order events to Kafka and, on a slower tick,
// re-runs the cart clear of orders whose checkout could not finish it.
type OutboxPoller struct {
	cfg        Config
	repo       OutboxStore
	reconciler Reconciler
	writer     MessageWriter
	log        *slog.Logger
	now        func() time.Time
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

func NewOutboxPoller(cfg Config, repo OutboxStore, reconciler Reconciler, writer MessageWriter, log *slog.Logger) *OutboxPoller {
	if cfg.EventTick <= 0 {
		cfg.EventTick = time.Second
	}
	if cfg.RecoveryTick <= 0 {
		cfg.RecoveryTick = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &OutboxPoller{
		cfg:        cfg,
		repo:       repo,
		reconciler: reconciler,
		writer:     writer,
		log:        log,
		now:        time.Now,
	}
}

// Run polls until ctx is done. A nil writer disables publishing; recovery
// still runs.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.cfg.EventTick)
	recoveryTicker := time.NewTicker(p.cfg.RecoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			if p.writer != nil {
				p.processUnpublishedEvents(ctx)
			}
		case <-recoveryTicker.C:
			p.recoverUnclearedCarts(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.cfg.BatchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "error", err)
			// keep per-order ordering: later events wait for the next tick
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			continue
		}
	}
}

// recoverUnclearedCarts closes the gap between a stored order and its cart
// clear when the checkout gave up on clearing.
func (p *OutboxPoller) recoverUnclearedCarts(ctx context.Context) {
	orders, err := p.repo.ListUnclearedOrders(ctx, p.now().Add(-p.cfg.RecoveryGrace), p.cfg.BatchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to list uncleared orders", "error", err)
		return
	}
	for _, order := range orders {
		if err := p.reconciler.Reconcile(ctx, order); err != nil {
			p.log.ErrorContext(ctx, "failed to clear cart of order",
				"order_id", order.ID, "user_id", order.UserID, "error", err)
			continue
		}
		p.log.InfoContext(ctx, "cart of order reconciled", "order_id", order.ID, "user_id", order.UserID)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order_id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
