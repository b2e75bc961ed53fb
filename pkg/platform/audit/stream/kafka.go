// Package stream forwards audit entries to the platform compliance topic.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"archivist/pkg/platform/audit"
)

const DefaultTopic = "archivist.audit"

// KafkaForwarder publishes audit entries to Kafka as JSON records keyed by
// subject, so per-account trails stay ordered within a partition.
type KafkaForwarder struct {
	client *kgo.Client
	topic  string
}

// NewKafkaForwarder connects a producer to the given brokers.
func NewKafkaForwarder(brokers []string, topic string) (*KafkaForwarder, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaForwarder{client: client, topic: topic}, nil
}

// Publish sends one entry and waits for broker acknowledgement.
func (f *KafkaForwarder) Publish(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	key := entry.ID.String()
	if entry.Subject != nil {
		key = entry.Subject.String()
	}

	record := &kgo.Record{Topic: f.topic, Key: []byte(key), Value: payload}
	if err := f.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

func (f *KafkaForwarder) Close() {
	f.client.Close()
}
