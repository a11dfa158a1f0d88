package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

type KafkaConfig struct {
	Brokers  string
	Topic    string
	ClientID string
}

var _ DocumentQueue = (*KafkaQueue)(nil)

// KafkaQueue produces document events keyed by document id.
type KafkaQueue struct {
	producer *kafka.Producer
	topic    string
	done     chan struct{}
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if cfg.Topic == "" {
		cfg.Topic = TopicDocumentGenerated
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "docgen"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"client.id":          cfg.ClientID,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	q := &KafkaQueue{producer: producer, topic: cfg.Topic, done: make(chan struct{})}
	go q.reportDeliveries()

	return q, nil
}

// reportDeliveries logs asynchronous delivery failures.
func (q *KafkaQueue) reportDeliveries() {
	defer close(q.done)
	for e := range q.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logrus.Warnf("event delivery failed for key %s: %v", ev.Key, ev.TopicPartition.Error)
			}
		case kafka.Error:
			logrus.Warnf("kafka: %v", ev)
		}
	}
}

func (q *KafkaQueue) PublishGenerated(ctx context.Context, event DocumentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return q.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &q.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.DocumentID),
		Value:          value,
		Headers:        []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, nil)
}

func (q *KafkaQueue) Close() {
	if left := q.producer.Flush(5000); left > 0 {
		logrus.Warnf("%d document events not delivered before shutdown", left)
	}
	q.producer.Close()
	<-q.done
}
