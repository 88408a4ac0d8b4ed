// Package queue provides Queue implementations for the engine's async
// security-event jobs. Delivery guarantees (at-least-once, consumer retries
// with exponential backoff) are the broker/consumer's contract; the engine
// only enqueues.
package queue

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes events to a single topic, keyed by job kind so one kind
// keeps its ordering within a partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka builds a producer over the given brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Enqueue publishes one job.
func (k *Kafka) Enqueue(ctx context.Context, kind string, payload []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(kind),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	})
}

// Close flushes and closes the producer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
