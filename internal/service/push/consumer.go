package push

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"digigoods/internal/pkg/logger"
	"digigoods/internal/pkg/mq"
)

// MessageReader 是 *kafka.Reader 的最小抽象
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// orderPlacedEvent 是订单服务发布的 OrderPlaced 事件中推送需要的字段
type orderPlacedEvent struct {
	EventID    string          `json:"eventId"`
	OrderID    string          `json:"orderId"`
	UserID     int64           `json:"userId"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

// Notification 是推送给浏览器的消息
type Notification struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"orderId"`
	FinalPrice json.Number `json:"finalPrice"`
}

// EventConsumer 消费订单事件并推送给在线用户
type EventConsumer struct {
	reader MessageReader
	hub    *Hub
	tracer trace.Tracer
}

func NewEventConsumer(reader MessageReader, hub *Hub, tracer trace.Tracer) *EventConsumer {
	return &EventConsumer{reader: reader, hub: hub, tracer: tracer}
}

// Run 循环消费消息直到 ctx 结束。处理失败的消息记录日志后照常提交，不阻塞后续消息。
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message")
			continue
		}

		if err := c.HandleMessage(ctx, msg); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("offset", msg.Offset).Msg("skip unprocessable order event")
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// HandleMessage 处理单条 OrderPlaced 消息。用户不在线不算错误。
func (c *EventConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	// 1. 从消息头中提取追踪上下文
	ctx = mq.ExtractTraceContext(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "push-gateway.HandleOrderPlaced", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event orderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		return err
	}
	if event.UserID <= 0 || event.OrderID == "" {
		err := errors.New("order event missing user or order id")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.Int64("user.id", event.UserID),
		attribute.String("order.id", event.OrderID),
	)

	payload, err := json.Marshal(Notification{
		Type:       "order_placed",
		OrderID:    event.OrderID,
		FinalPrice: json.Number(event.FinalPrice.StringFixed(2)),
	})
	if err != nil {
		return err
	}

	delivered := c.hub.Push(event.UserID, payload)
	span.SetAttributes(attribute.Int("push.delivered", delivered))
	logger.Ctx(ctx).Info().
		Str("order_id", event.OrderID).
		Int64("user_id", event.UserID).
		Int("delivered", delivered).
		Msg("order notification pushed")
	return nil
}
