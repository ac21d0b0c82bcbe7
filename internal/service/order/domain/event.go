// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced 在结算事务提交后发布，推送网关据此通知用户。
type OrderPlaced struct {
	EventID       string          `json:"eventId"`
	OrderID       string          `json:"orderId"`
	UserID        int64           `json:"userId"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`
	ProductIDs    []int64         `json:"productIds"`
	DiscountCodes []string        `json:"discountCodes"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewOrderPlaced 从已保存的订单构造事件
func NewOrderPlaced(eventID string, o *Order) *OrderPlaced {
	codes := o.DiscountCodes
	if codes == nil {
		codes = []string{}
	}
	return &OrderPlaced{
		EventID:       eventID,
		OrderID:       o.ID,
		UserID:        o.UserID,
		FinalPrice:    o.FinalPrice,
		ProductIDs:    o.ProductIDs(),
		DiscountCodes: codes,
		CreatedAt:     o.CreatedAt,
	}
}
