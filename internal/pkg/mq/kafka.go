// Package mq 封装 kafka-go 的读写器创建以及消息头上的链路上下文传播。
package mq

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageWriter 是 *kafka.Writer 的最小抽象，便于在测试中替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ParseBrokers 把 "host1:9092,host2:9092" 拆成地址列表，忽略空项。
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // 同一个 key（用户）落在同一分区，保证顺序
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// ProduceMessage 注入链路上下文后写入一条消息。
func ProduceMessage(ctx context.Context, writer MessageWriter, key, value []byte) error {
	msg := kafka.Message{Key: key, Value: value, Time: time.Now().UTC()}
	InjectTraceContext(ctx, &msg.Headers)
	return writer.WriteMessages(ctx, msg)
}

// KafkaHeaderCarrier 实现了 propagation.TextMapCarrier，让 trace 上下文可以随消息头传递。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext 把 ctx 中的链路信息写入消息头。
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	carrier := KafkaHeaderCarrier(*headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	*headers = carrier
}

// ExtractTraceContext 从消息头中恢复链路信息。
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := KafkaHeaderCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
