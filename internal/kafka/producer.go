package kafka

import (
	"fmt"
	"log"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"banter/internal/config"
)

// Producer is a thin wrapper over the confluent producer. Delivery reports
// are drained in the background; failures are logged, never surfaced to the
// chat path.
type Producer struct {
	producer *kafka.Producer
	logger   *log.Logger
}

// NewProducer connects a producer using the configured brokers.
func NewProducer(cfg config.KafkaConfig, logger *log.Logger) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"client.id":         cfg.ClientID,
		"security.protocol": cfg.Protocol,
		"acks":              "1",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	producer := &Producer{producer: p, logger: logger}
	go producer.drainEvents()
	return producer, nil
}

func (p *Producer) drainEvents() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Printf("kafka delivery failed: %v", ev.TopicPartition.Error)
			}
		case kafka.Error:
			p.logger.Printf("kafka producer error: %v", ev)
		}
	}
}

// Send enqueues one record. The call is asynchronous; delivery outcomes show
// up in the event drain.
func (p *Producer) Send(topic, key string, payload []byte) error {
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
	}, nil)
}

// Close flushes outstanding records and shuts the producer down.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
