package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product 是可售卖的数字商品。Stock 永远不会被一次结算扣成负数。
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// ProductRepository 定义了商品的持久化接口。
type ProductRepository interface {
	// FindByIDs 返回能找到的商品，每个 id 至多一条，不保证顺序。
	FindByIDs(ctx context.Context, ids []int64) ([]*Product, error)
	FindAll(ctx context.Context) ([]*Product, error)
	// DecrementStock 在库存足够时原子地扣减 qty，否则返回 ErrInsufficientStock。
	DecrementStock(ctx context.Context, id int64, qty int) error
}
