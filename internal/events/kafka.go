package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/plantshop/internal/domain/order"
)

var _ order.Publisher = (*KafkaPublisher)(nil)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements order.Publisher. Messages are keyed by order ID
// so every event of one order lands on the same partition.
type KafkaPublisher struct {
	w   MessageWriter
	now func() time.Time
}

// NewWriter returns a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaPublisher returns a publisher writing through w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: time.Now}
}

// OrderPlaced publishes an OrderPlaced event.
func (p *KafkaPublisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, TypeOrderPlaced, o.ID, placedPayload(o))
}

// StatusChanged publishes an OrderStatusChanged event.
func (p *KafkaPublisher) StatusChanged(ctx context.Context, o *order.Order, from order.Status) error {
	return p.publish(ctx, TypeOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		TrackingNumber: o.TrackingNumber,
		From:           string(from),
		To:             string(o.Status),
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, orderID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  version,
		OccurredAt:    p.now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s for order %q: %w", eventType, orderID, err)
	}
	return nil
}
