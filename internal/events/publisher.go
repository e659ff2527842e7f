// Package events announces issued forecasts to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// messageWriter is the part of *kafkago.Writer we use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces one message per issued forecast.
// It implements weather.Publisher.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, result weather.EnsembleResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish forecast for %s: %w", result.Location, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage keys messages by location so every forecast for one
// place lands on the same partition.
func serializeToMessage(result weather.EnsembleResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Location.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "confidence", Value: []byte(result.Confidence)},
			{Key: "event_date", Value: []byte(result.EventDate)},
			{Key: "probability", Value: []byte(strconv.FormatFloat(result.Probability, 'f', -1, 64))},
			{Key: "issued_at", Value: []byte(result.IssuedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// NopPublisher discards everything; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, weather.EnsembleResult) error { return nil }

func (NopPublisher) Close() error { return nil }
