package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

// OrderEventConsumer reads order lifecycle events from Kafka and relays them
// to live connections. Delivery stays at-most-once: a decode failure or an
// offline recipient drops the event without retry.
type OrderEventConsumer struct {
	reader *kafka.Reader
	relay  ports.EventRelay
	kind   domain.EventKind
	logger *slog.Logger
}

// ConsumerConfig holds the settings for a single topic consumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	// Kind selects the outbound event for messages on this topic.
	Kind domain.EventKind
}

// NewOrderEventConsumer creates a consumer bound to one topic.
func NewOrderEventConsumer(cfg ConsumerConfig, relay ports.EventRelay, logger *slog.Logger) *OrderEventConsumer {
	return &OrderEventConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
		}),
		relay:  relay,
		kind:   cfg.Kind,
		logger: logger.With("component", "kafka_consumer", "topic", cfg.Topic),
	}
}

// orderEvent is the wire shape of order messages published by the order
// service. SellerID addresses shop deliveries, BuyerID buyer deliveries.
type orderEvent struct {
	SellerID string          `json:"sellerId"`
	BuyerID  string          `json:"buyerId"`
	Order    json.RawMessage `json:"order"`
}

// Run consumes messages until the context is cancelled.
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			c.logger.Error("kafka read failed", "error", err)
			continue
		}

		envelope, err := c.decode(m)
		if err != nil {
			c.logger.Warn("dropping malformed order event",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
			continue
		}

		c.relay.Route(envelope)
	}
}

// Close releases the underlying reader.
func (c *OrderEventConsumer) Close() error {
	return c.reader.Close()
}

func (c *OrderEventConsumer) decode(m kafka.Message) (domain.Envelope, error) {
	var event orderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return domain.Envelope{}, err
	}

	target, err := c.target(event)
	if err != nil {
		return domain.Envelope{}, err
	}

	envelope := domain.Envelope{
		Kind:      c.kind,
		Target:    target,
		Payload:   event.Order,
		Timestamp: m.Time.UTC(),
	}
	if err := envelope.Validate(); err != nil {
		return domain.Envelope{}, err
	}
	return envelope, nil
}

// target picks the recipient by event kind: new orders go to the shop,
// status updates go to the buyer.
func (c *OrderEventConsumer) target(event orderEvent) (domain.Identity, error) {
	switch c.kind {
	case domain.EventNewOrder:
		return domain.Identity{SubjectID: event.SellerID, Kind: domain.KindShop}, nil
	case domain.EventOrderStatusUpdated:
		return domain.Identity{SubjectID: event.BuyerID, Kind: domain.KindBuyer}, nil
	default:
		return domain.Identity{}, domain.ErrUnsupportedEventKind
	}
}
