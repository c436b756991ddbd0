package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"feed-cranker-sol/internal/logic/cranker"
	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/pkg/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// CrankReport 是一条发往 Kafka 的 crank 结果消息
type CrankReport struct {
	Signature     string   `json:"signature"`                // 已确认交易的签名
	Feeds         []string `json:"feeds"`                    // 本批刷新的 feed（base58）
	UnitLimit     uint32   `json:"unit_limit"`               // 预算的计算单元上限
	UnitsConsumed *uint64  `json:"units_consumed,omitempty"` // 模拟给出的实际消耗
	DurationMs    int64    `json:"duration_ms"`              // 全流程耗时
	CrankedAt     int64    `json:"cranked_at"`               // Unix timestamp（秒）
}

// NewCrankReport 由流水线结果构造上报消息
func NewCrankReport(result *cranker.Result, at time.Time) *CrankReport {
	feeds := make([]string, len(result.Feeds))
	for i, feed := range result.Feeds {
		feeds[i] = feed.String()
	}
	return &CrankReport{
		Signature:     result.Signature,
		Feeds:         feeds,
		UnitLimit:     result.UnitLimit,
		UnitsConsumed: result.UnitsConsumed,
		DurationMs:    result.Duration.Milliseconds(),
		CrankedAt:     at.Unix(),
	}
}

// Reporter 把每次成功的 crank 上报到 Kafka，供下游监控消费
type Reporter struct {
	producer       *kafka.Producer
	topic          string
	deliverTimeout time.Duration
}

// NewReporter 创建上报器，topic 不存在时自动创建（单分区）
func NewReporter(brokers, topic string, deliverTimeout time.Duration) (*Reporter, error) {
	if err := ensureTopic(brokers, topic); err != nil {
		return nil, err
	}

	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		// 基础连接
		"bootstrap.servers": brokers,
		"client.id":         fmt.Sprintf("feed-cranker-%s", localIP),

		// 可靠性保障
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5,

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		// 上报量极小，关掉批处理延迟
		"linger.ms":        0,
		"compression.type": "none",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Reporter{
		producer:       producer,
		topic:          topic,
		deliverTimeout: deliverTimeout,
	}, nil
}

// ensureTopic 用管理员客户端确认 topic 存在，不存在则创建
func ensureTopic(brokers, topic string) error {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := adminClient.GetMetadata(nil, true, 10000)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	for _, t := range meta.Topics {
		if t.Topic == topic {
			return nil
		}
	}

	// replicationFactor 是每个分区副本的数量，单 broker 环境只能为 1
	replicationFactor := 1
	if len(meta.Brokers) > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] topic %s 不存在, 创建中 (replication factor = %d)", topic, replicationFactor)

	results, err := adminClient.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: replicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
	}
	return nil
}

// Report 发送一条 crank 结果并等待 broker 确认
func (r *Reporter) Report(ctx context.Context, report *CrankReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal crank report: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = r.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &r.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(report.Signature),
		Value: payload,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce error: %w", err)
	}

	select {
	case e, ok := <-deliveryChan:
		if !ok {
			return fmt.Errorf("delivery channel closed unexpectedly")
		}
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("invalid message type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return msg.TopicPartition.Error
		}
		return nil
	case <-time.After(r.deliverTimeout):
		return fmt.Errorf("delivery timeout (>%v)", r.deliverTimeout)
	case <-ctx.Done():
		return fmt.Errorf("ctx cancelled: %w", ctx.Err())
	}
}

// Close 刷掉未确认消息并关闭生产者
func (r *Reporter) Close() {
	r.producer.Flush(int(r.deliverTimeout.Milliseconds()))
	r.producer.Close()
}
