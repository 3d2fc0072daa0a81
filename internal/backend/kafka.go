package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes location samples to a Kafka topic, keyed by driver id so the samples
// of one driver stay ordered within a partition. The session token travels in a header.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (k *KafkaSink) Send(ctx context.Context, token string, item models.QueuedSample) error {
	value, err := json.Marshal(newLocationRow(item))
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(item.DriverID),
		Value: value,
		Time:  item.CapturedAt,
		Headers: []kafka.Header{
			{Key: "authorization", Value: []byte("Bearer " + token)},
			{Key: "sample-id", Value: []byte(item.ID.String())},
		},
	}
	if err = k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}

	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
