package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"digigoods/internal/pkg/mq"
	"digigoods/internal/service/order/domain"
)

// OrderEventKafkaAdapter 实现了 port.OrderEventPublisher 接口。
type OrderEventKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewOrderEventKafkaAdapter(writer mq.MessageWriter) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer}
}

// PublishOrderPlaced 以用户 id 作为消息 key，同一用户的事件落在同一分区，保持顺序。
func (a *OrderEventKafkaAdapter) PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal OrderPlaced event")
	}
	key := []byte(strconv.FormatInt(event.UserID, 10))
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	if err := mq.ProduceMessage(ctx, a.writer, key, eventBytes); err != nil {
		return errors.Wrapf(err, "publish OrderPlaced for order %s", event.OrderID)
	}
	return nil
}
