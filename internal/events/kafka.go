package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"client.id":         "vendorsync",
		"acks":              "all",
		"retries":           5,
		"retry.backoff.ms":  500,
		"compression.type":  "snappy",
		"linger.ms":         10,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

// Publish blocks until the broker acknowledges the message or ctx ends.
func (p *KafkaPublisher) Publish(ctx context.Context, e ListingEvent) error {
	value, err := e.Encode()
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Key()),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce: %w", err)
	}

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", ev)
		}
		return m.TopicPartition.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
