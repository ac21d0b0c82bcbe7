package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock     int             `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}
