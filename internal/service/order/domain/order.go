// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized      = errors.New("User cannot place order for another user")
	ErrUserNotFound      = errors.New("user not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrExcessiveDiscount = errors.New("total discount exceeds the allowed maximum")
	ErrDuplicateCheckout = errors.New("checkout with this idempotency key is already in progress or completed")
	ErrLockTimeout       = errors.New("timed out waiting for checkout lock")
)

// User 是下单用户。认证信息由上游网关负责，这里只关心用户是否存在。
type User struct {
	ID       int64
	Username string
}

// OrderItem 是订单中的一行，每个商品出现一次就是一行，价格在下单时固定下来。
type OrderItem struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
}

// Order 是订单聚合的根实体，创建后不再修改
type Order struct {
	ID            string
	UserID        int64
	Items         []OrderItem
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	FinalPrice    decimal.Decimal
	DiscountCodes []string
	CreatedAt     time.Time
}

// ProductIDs 按行顺序返回商品 id，重复出现的商品会重复出现。
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
