package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/internal/docqa/interfaces"
	"docqa/internal/models"
	"docqa/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher 将文档事件序列化为 JSON 并发送到 Kafka。
type EventPublisher struct {
	writer messageWriter
	topic  string
	logger *logger.Logger
}

var _ interfaces.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher 创建一个新的 EventPublisher 实例。
func NewEventPublisher(cfg config.KafkaConfig, log *logger.Logger) *EventPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}
	return newEventPublisher(writer, cfg.Topic, log)
}

func newEventPublisher(w messageWriter, topic string, log *logger.Logger) *EventPublisher {
	return &EventPublisher{writer: w, topic: topic, logger: log}
}

// Publish 发送一条事件，消息 key 为第一个文件标识。
func (p *EventPublisher) Publish(ctx context.Context, event models.DocumentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal document event: %w", err)
	}

	var key []byte
	if len(event.FileIDs) > 0 {
		key = []byte(event.FileIDs[0])
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: jsonData})
	if err != nil {
		p.logger.WithError(err).WithPayload(map[string]interface{}{"topic": p.topic, "event": string(event.Type)}).Error("Failed to write message to Kafka")
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃所有事件，在未启用事件时使用。
type NopPublisher struct{}

var _ interfaces.EventPublisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, models.DocumentEvent) error { return nil }
func (NopPublisher) Close() error                                        { return nil }
