package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"banter/internal/config"
)

// Notice is an operator message fed in from outside the chat server. An
// empty Room targets everyone.
type Notice struct {
	Room    string `json:"room,omitempty"`
	Content string `json:"content"`
}

// NoticeConsumer reads operator notices off Kafka and hands them to the chat
// engine.
type NoticeConsumer struct {
	consumer *kafka.Consumer
	logger   *log.Logger
}

// NewNoticeConsumer subscribes to the notices topic.
func NewNoticeConsumer(cfg config.KafkaConfig, logger *log.Logger) (*NoticeConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"group.id":          cfg.ConsumerGroup,
		"security.protocol": cfg.Protocol,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if err := c.Subscribe(cfg.NoticesTopic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.NoticesTopic, err)
	}
	return &NoticeConsumer{consumer: c, logger: logger}, nil
}

// Run polls until ctx is cancelled, calling handle for each notice. Malformed
// records are logged and skipped.
func (c *NoticeConsumer) Run(ctx context.Context, handle func(notice Notice)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Printf("kafka consume: %v", err)
			continue
		}

		var notice Notice
		if err := json.Unmarshal(msg.Value, &notice); err != nil {
			c.logger.Printf("skip malformed notice at %v: %v", msg.TopicPartition, err)
			continue
		}
		handle(notice)
	}
}

// Close shuts the consumer down.
func (c *NoticeConsumer) Close() {
	_ = c.consumer.Close()
}
