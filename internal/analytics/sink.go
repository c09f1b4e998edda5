package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/kafka"
)

// Publisher is the part of *kafka.Producer the Kafka sink uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink publishes events to the analytics topic, keyed by collection.
type KafkaSink struct {
	publisher Publisher
}

func NewKafkaSink(p Publisher) *KafkaSink {
	return &KafkaSink{publisher: p}
}

func (s *KafkaSink) Deliver(ctx context.Context, events []Envelope) error {
	batch := make([]kafka.Event, 0, len(events))
	for _, e := range events {
		batch = append(batch, kafka.Event{Key: e.Key(), Value: e})
	}
	return s.publisher.PublishBatch(ctx, batch)
}

// DirectSink feeds events straight into an Aggregator in-process.
type DirectSink struct {
	aggregator *Aggregator
}

func NewDirectSink(a *Aggregator) *DirectSink {
	return &DirectSink{aggregator: a}
}

func (s *DirectSink) Deliver(_ context.Context, events []Envelope) error {
	for _, e := range events {
		s.aggregator.Record(e)
	}
	return nil
}
