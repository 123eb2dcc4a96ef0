package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

// EventSink receives every alert log change. Failures are logged by the
// caller and never affect the entry.
type EventSink interface {
	Publish(ctx context.Context, entry models.AlertLogEntry) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink publishes alert log changes keyed by entry id, so a compacted
// topic holds the latest state of each entry.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, entry models.AlertLogEntry) error {
	msg, err := toMessage(entry)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, msg)
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func toMessage(entry models.AlertLogEntry) (kafkago.Message, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert entry: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(entry.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(entry.Status)},
			{Key: "severity", Value: []byte(entry.Event.Severity)},
		},
	}, nil
}
