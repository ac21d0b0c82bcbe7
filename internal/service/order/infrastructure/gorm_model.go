package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserModel 对应 users 表
type UserModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"size:64;uniqueIndex;not null"`
}

func (UserModel) TableName() string { return "users" }

// OrderModel 对应 orders 表。折扣码以逗号拼接存放，订单创建后不会再按折扣码查询。
type OrderModel struct {
	ID            string          `gorm:"primaryKey;size:36"`
	UserID        int64           `gorm:"index;not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	FinalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountCodes string          `gorm:"size:512"`
	CreatedAt     time.Time
	Items         []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 对应 order_items 表，Position 保留下单时的商品顺序
type OrderItemModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"size:36;index;not null"`
	Position    int             `gorm:"not null"`
	ProductID   int64           `gorm:"not null"`
	ProductName string          `gorm:"size:255;not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }
