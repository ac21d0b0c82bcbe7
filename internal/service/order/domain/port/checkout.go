// Package port 定义了结算流程依赖的出站端口。
package port

import (
	"context"

	catalog "digigoods/internal/service/catalog/domain"
	"digigoods/internal/service/order/domain"
	promotion "digigoods/internal/service/promotion/domain"
)

// ProductCatalog 由商品目录上下文实现。
type ProductCatalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]*catalog.Product, error)
	ValidateAndDecrementStock(ctx context.Context, ids []int64) error
}

// DiscountValidator 由促销上下文实现。
type DiscountValidator interface {
	ValidateAndGetDiscounts(ctx context.Context, codes []string) ([]*promotion.Discount, error)
	UpdateDiscountUsage(ctx context.Context, discounts []*promotion.Discount) error
}

// Transactor 在一个事务中执行 fn，fn 返回错误时整体回滚。
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker 是按 key 互斥的分布式锁。拿不到锁时返回 domain.ErrLockTimeout。
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// IdempotencyStore 记录已经提交过的幂等键。
type IdempotencyStore interface {
	// Reserve 首次占用 key 时返回 true，key 已存在时返回 false。
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OrderEventPublisher 发布订单领域事件。
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error
}
