package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountModel 对应数据库中的 discounts 表
type DiscountModel struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	Code          string          `gorm:"size:64;uniqueIndex;not null"`
	Percentage    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Type          string          `gorm:"size:32;not null"`
	ValidFrom     time.Time       `gorm:"type:date;not null"`
	ValidUntil    time.Time       `gorm:"type:date;not null"`
	RemainingUses int             `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// 关联关系
	Products []DiscountProductModel `gorm:"foreignKey:DiscountID;constraint:OnDelete:CASCADE"`
}

// TableName 指定 GORM 应该使用的表名
func (DiscountModel) TableName() string {
	return "discounts"
}

// DiscountProductModel 是 PRODUCT_SPECIFIC 折扣与商品的关联表
type DiscountProductModel struct {
	DiscountID int64 `gorm:"primaryKey"`
	ProductID  int64 `gorm:"primaryKey;index"`
}

func (DiscountProductModel) TableName() string {
	return "discount_products"
}
