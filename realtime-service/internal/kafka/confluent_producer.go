package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/goccy/go-json"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
)

// ConfluentProducer implements EventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer     *kafka.Producer
	callTopic    string
	messageTopic string
	doneCh       chan struct{}
}

// NewConfluentProducer creates a new Kafka producer for call and message events.
func NewConfluentProducer(brokers, callTopic, messageTopic string, partitions int) (*ConfluentProducer, error) {
	// Ensure topics exist with desired partition count
	for _, topic := range []string{callTopic, messageTopic} {
		if err := ensureTopic(brokers, topic, partitions); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
		}
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer:     p,
		callTopic:    callTopic,
		messageTopic: messageTopic,
		doneCh:       make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	l := pkglog.L()
	for e := range cp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().Err(ev.TopicPartition.Error).
					Str("topic", *ev.TopicPartition.Topic).
					Msg("kafka delivery failed")
			}
		}
	}
	close(cp.doneCh)
}

func (cp *ConfluentProducer) produce(topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// ProduceCallEvent sends a call event keyed by call id so every transition of
// a call lands on the same partition.
func (cp *ConfluentProducer) ProduceCallEvent(ctx context.Context, event *CallEvent) error {
	return cp.produce(cp.callTopic, event.CallID, event)
}

// ProduceMessageEvent sends a message event keyed by conversation id.
func (cp *ConfluentProducer) ProduceMessageEvent(ctx context.Context, event *MessageEvent) error {
	return cp.produce(cp.messageTopic, event.ConversationID, event)
}

// Close flushes pending messages and closes the producer.
func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
