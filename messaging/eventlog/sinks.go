package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"registrar/engine/library"
)

// LogSink writes each event to the terminal log at the given level.
type LogSink struct {
	Level int
}

func (s LogSink) Publish(_ context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	library.LogCLI(fmt.Sprintf("event %s", b), s.Level)
	return nil
}

type producer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaSink produces events to one topic, keyed by event type. Publish only buffers the
// record, so an unreachable broker never stalls the caller; failed deliveries are logged.
type KafkaSink struct {
	client  producer
	topic   string
	onError func(*kgo.Record, error)
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RecordDeliveryTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, onError: logDeliveryFailure}, nil
}

func logDeliveryFailure(r *kgo.Record, err error) {
	library.LogCLI(fmt.Sprintf("event %s was not delivered to kafka: %s", r.Key, err), 2)
}

func (s *KafkaSink) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(e.Body.Type),
		Value: b,
	}
	s.client.TryProduce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil && s.onError != nil {
			s.onError(r, err)
		}
	})
	return nil
}

// Close waits briefly for buffered events before closing the client.
func (s *KafkaSink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}
