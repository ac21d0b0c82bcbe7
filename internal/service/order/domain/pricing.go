// internal/service/order/domain/pricing.go
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	catalog "digigoods/internal/service/catalog/domain"
	promotion "digigoods/internal/service/promotion/domain"
)

// DefaultMaxDiscountRatio 是折扣总额占小计的上限（不含）。
var DefaultMaxDiscountRatio = decimal.RequireFromString("0.80")

// Quote 是一次定价的结果。FinalPrice 保留两位小数，DiscountTotal = Subtotal - FinalPrice。
type Quote struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	FinalPrice    decimal.Decimal
}

// Pricer 实现固定的折扣组合规则：
// 先按请求顺序依次应用所有 GENERAL，总价乘以 (1 - pct/100)；
// 再对每个 PRODUCT_SPECIFIC 从总价中减去 pct/100 * 适用商品的小计。
// 中间结果不做舍入，最后对总价四舍五入到分。
type Pricer struct {
	maxRatio decimal.Decimal
}

func NewPricer(maxRatio decimal.Decimal) *Pricer {
	if !maxRatio.IsPositive() {
		maxRatio = DefaultMaxDiscountRatio
	}
	return &Pricer{maxRatio: maxRatio}
}

// Price 计算 lines 的价格，lines 中每个元素代表一件商品（重复出现即多件）。
// 折扣总额达到 maxRatio * 小计时返回 ErrExcessiveDiscount。小计为 0 时不做上限检查。
func (p *Pricer) Price(lines []*catalog.Product, discounts []*promotion.Discount) (Quote, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price)
	}

	// 按类型分组，组内保持请求顺序
	var general, specific []*promotion.Discount
	for _, d := range discounts {
		switch d.Type {
		case promotion.DiscountTypeGeneral:
			general = append(general, d)
		case promotion.DiscountTypeProductSpecific:
			specific = append(specific, d)
		default:
			return Quote{}, fmt.Errorf("unknown discount type %q for code %s", d.Type, d.Code)
		}
	}

	total := subtotal
	for _, d := range general {
		total = total.Mul(decimal.NewFromInt(1).Sub(d.Percentage.Shift(-2)))
	}
	for _, d := range specific {
		base := decimal.Zero
		for _, l := range lines {
			if d.AppliesTo(l.ID) {
				base = base.Add(l.Price)
			}
		}
		total = total.Sub(base.Mul(d.Percentage.Shift(-2)))
	}

	discountTotal := subtotal.Sub(total)
	if subtotal.IsPositive() && discountTotal.GreaterThanOrEqual(subtotal.Mul(p.maxRatio)) {
		return Quote{}, fmt.Errorf("%w: %s of %s", ErrExcessiveDiscount, discountTotal.StringFixed(2), subtotal.StringFixed(2))
	}

	final := total.Round(2)
	return Quote{
		Subtotal:      subtotal,
		DiscountTotal: subtotal.Sub(final),
		FinalPrice:    final,
	}, nil
}
