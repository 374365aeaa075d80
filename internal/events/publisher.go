package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Type names a domain event
type Type string

const (
	BookingCreated    Type = "booking.created"
	BookingApproved   Type = "booking.approved"
	BookingRejected   Type = "booking.rejected"
	PaymentCompleted  Type = "payment.completed"
	PaymentFailed     Type = "payment.failed"
	FeedbackSubmitted Type = "feedback.submitted"
)

// Event is a booking lifecycle change published after the change committed
type Event struct {
	Type       Type                   `json:"type"`
	BookingID  uuid.UUID              `json:"booking_id"`
	StallID    uuid.UUID              `json:"stall_id,omitempty"`
	ActorID    uuid.UUID              `json:"actor_id,omitempty"`
	Amount     float64                `json:"amount,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher delivers domain events. Publishing never fails the caller's
// operation, so implementations log instead of returning errors.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MessageWriter is the subset of kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by booking id
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	logger *logrus.Logger
}

// NewKafkaPublisher creates a synchronous writer for brokers
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, topic, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer
func NewKafkaPublisherWithWriter(writer MessageWriter, topic string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Publish marshals and writes the event, logging a warning on failure
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	fields := logrus.Fields{"type": event.Type, "booking_id": event.BookingID, "topic": p.topic}

	if err := p.write(ctx, event); err != nil {
		p.logger.WithFields(fields).WithError(err).Warn("Failed to publish domain event")
		return
	}
	p.logger.WithFields(fields).Debug("Published domain event")
}

func (p *KafkaPublisher) write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BookingID.String()),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events; used when no brokers are configured
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, Event) {}
