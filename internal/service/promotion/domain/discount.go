// Package domain 定义了折扣码的领域模型和校验规则。
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType 决定折扣作用在整单还是部分商品上。
type DiscountType string

const (
	DiscountTypeGeneral         DiscountType = "GENERAL"          // 整单按比例打折，按请求顺序依次叠加
	DiscountTypeProductSpecific DiscountType = "PRODUCT_SPECIFIC" // 只对适用商品的小计打折
)

// 校验失败的原因，会原样返回给调用方。
const (
	ReasonNotFound        = "discount code not found"
	ReasonExpired         = "discount has expired"
	ReasonNotYetValid     = "discount is not yet valid"
	ReasonNoRemainingUses = "discount has no remaining uses"
)

var (
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrInvalidFilter   = errors.New("invalid discount filter")
)

// InvalidDiscountError 携带出错的折扣码和原因，errors.Is(err, ErrInvalidDiscount) 为真。
type InvalidDiscountError struct {
	Code   string
	Reason string
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("Invalid discount code '%s': %s", e.Code, e.Reason)
}

func (e *InvalidDiscountError) Is(target error) bool {
	return target == ErrInvalidDiscount
}

// Discount 是一个折扣码。ValidFrom 和 ValidUntil 是闭区间的日历日期，只看年月日。
type Discount struct {
	ID            int64
	Code          string // 唯一，大小写敏感
	Percentage    decimal.Decimal
	Type          DiscountType
	ValidFrom     time.Time
	ValidUntil    time.Time
	RemainingUses int
	// ApplicableProductIDs 只对 PRODUCT_SPECIFIC 有意义，空集合表示不适用任何商品。
	ApplicableProductIDs []int64
}

// Validate 按 生效日期、过期日期、剩余次数 的顺序检查 today 这一天是否可用。
func (d *Discount) Validate(today time.Time) error {
	day := dateKey(today)
	switch {
	case day < dateKey(d.ValidFrom):
		return &InvalidDiscountError{Code: d.Code, Reason: ReasonNotYetValid}
	case day > dateKey(d.ValidUntil):
		return &InvalidDiscountError{Code: d.Code, Reason: ReasonExpired}
	case d.RemainingUses <= 0:
		return &InvalidDiscountError{Code: d.Code, Reason: ReasonNoRemainingUses}
	}
	return nil
}

// AppliesTo 报告该折扣是否作用于 productID。GENERAL 折扣作用于所有商品。
func (d *Discount) AppliesTo(productID int64) bool {
	if d.Type == DiscountTypeGeneral {
		return true
	}
	for _, id := range d.ApplicableProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// dateKey 把日期压成 yyyymmdd 便于比较，只取 t 自身时区下的年月日。
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DiscountRepository 定义了折扣码的持久化接口。
type DiscountRepository interface {
	// FindByCodes 返回存在的折扣码，不保证顺序，不存在的直接忽略。
	FindByCodes(ctx context.Context, codes []string) ([]*Discount, error)
	FindAll(ctx context.Context) ([]*Discount, error)
	// DecrementRemainingUses 原子地把剩余次数减一；已经为 0 时返回 ReasonNoRemainingUses。
	DecrementRemainingUses(ctx context.Context, code string) error
}

// Predicate 判断一个折扣是否满足过滤条件。
type Predicate func(d *Discount) (bool, error)

// FilterEngine 把管理端传入的过滤表达式编译成 Predicate。
type FilterEngine interface {
	Compile(expr string) (Predicate, error)
}
