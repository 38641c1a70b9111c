package kafka

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopic 连接第一个 broker 并在主题不存在时创建它。
func EnsureTopic(cfg config.KafkaConfig, log *logger.Logger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("未配置 Kafka brokers")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("未配置 Kafka topic")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka 初始化连接失败: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	for _, p := range partitions {
		if p.Topic == cfg.Topic {
			return nil
		}
	}

	log.Info(fmt.Sprintf("主题 '%s' 不存在，准备创建...", cfg.Topic))
	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
	}
	return nil
}

// HealthCheck 通过查询控制器检查 Kafka 连接的健康状况。
func HealthCheck(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Controller()
	return err
}
