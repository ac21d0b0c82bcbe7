// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 插入一个新订单及其明细。订单创建后不可变，没有更新操作。
	Save(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找一个订单聚合，找不到时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)
}

// UserRepository 找不到用户时返回 ErrUserNotFound。
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
}
