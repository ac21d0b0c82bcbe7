package infrastructure

import (
	"strings"

	"digigoods/internal/service/order/domain"
)

func toDomainUser(m *UserModel) *domain.User {
	return &domain.User{ID: m.ID, Username: m.Username}
}

func fromDomainOrder(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:     o.ID,
			Position:    i,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
		})
	}
	return &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		Subtotal:      o.Subtotal,
		DiscountTotal: o.DiscountTotal,
		FinalPrice:    o.FinalPrice,
		DiscountCodes: strings.Join(o.DiscountCodes, ","),
		CreatedAt:     o.CreatedAt,
		Items:         items,
	}
}

// toDomainOrder 假定 m.Items 已按 Position 排好序
func toDomainOrder(m *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
		})
	}
	codes := []string{}
	if m.DiscountCodes != "" {
		codes = strings.Split(m.DiscountCodes, ",")
	}
	return &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Items:         items,
		Subtotal:      m.Subtotal,
		DiscountTotal: m.DiscountTotal,
		FinalPrice:    m.FinalPrice,
		DiscountCodes: codes,
		CreatedAt:     m.CreatedAt,
	}
}
