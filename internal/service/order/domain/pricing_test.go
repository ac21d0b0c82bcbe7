package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "digigoods/internal/service/catalog/domain"
	promotion "digigoods/internal/service/promotion/domain"
)

func product(id int64, price string) *catalog.Product {
	return &catalog.Product{ID: id, Name: "p", Price: decimal.RequireFromString(price)}
}

func general(pct string) *promotion.Discount {
	return &promotion.Discount{Code: "G" + pct, Type: promotion.DiscountTypeGeneral, Percentage: decimal.RequireFromString(pct)}
}

func scoped(pct string, ids ...int64) *promotion.Discount {
	return &promotion.Discount{Code: "S" + pct, Type: promotion.DiscountTypeProductSpecific, Percentage: decimal.RequireFromString(pct), ApplicableProductIDs: ids}
}

func TestPricer_Price(t *testing.T) {
	p100, p50 := product(1, "100.00"), product(2, "50.00")

	tests := []struct {
		name      string
		lines     []*catalog.Product
		discounts []*promotion.Discount
		want      string
	}{
		{name: "no discounts", lines: []*catalog.Product{p100, p50}, want: "150.00"},
		{name: "general 20 percent", lines: []*catalog.Product{p100, p50}, discounts: []*promotion.Discount{general("20")}, want: "120.00"},
		{name: "product specific scoped to one item", lines: []*catalog.Product{p100, p50}, discounts: []*promotion.Discount{scoped("10", 1)}, want: "140.00"},
		{name: "general discounts compound in order", lines: []*catalog.Product{p100}, discounts: []*promotion.Discount{general("10"), general("20")}, want: "72.00"},
		{name: "duplicate products count per occurrence", lines: []*catalog.Product{p100, p100, p50}, want: "250.00"},
		{name: "product specific counts every occurrence", lines: []*catalog.Product{p100, p100, p50}, discounts: []*promotion.Discount{scoped("10", 1)}, want: "230.00"},
		{name: "empty applicable set applies to nothing", lines: []*catalog.Product{p100}, discounts: []*promotion.Discount{scoped("50")}, want: "100.00"},
		{name: "79 percent is under the ceiling", lines: []*catalog.Product{p100}, discounts: []*promotion.Discount{general("79")}, want: "21.00"},
		{name: "28 percent combined", lines: []*catalog.Product{p100}, discounts: []*promotion.Discount{general("10"), general("20")}, want: "72.00"},
		{name: "rounds half away from zero at the end", lines: []*catalog.Product{product(3, "0.15")}, discounts: []*promotion.Discount{general("50")}, want: "0.08"},
		{name: "empty cart", want: "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewPricer(DefaultMaxDiscountRatio).Price(tt.lines, tt.discounts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.FinalPrice.StringFixed(2))
			assert.True(t, q.Subtotal.Sub(q.DiscountTotal).Equal(q.FinalPrice))
		})
	}
}

func TestPricer_GeneralAppliedBeforeProductSpecific(t *testing.T) {
	lines := []*catalog.Product{product(1, "100.00"), product(2, "50.00")}
	pricer := NewPricer(DefaultMaxDiscountRatio)

	orderings := map[string][]*promotion.Discount{
		"general first":          {general("10"), scoped("20", 1)},
		"product specific first": {scoped("20", 1), general("10")},
	}
	for name, discounts := range orderings {
		t.Run(name, func(t *testing.T) {
			q, err := pricer.Price(lines, discounts)
			require.NoError(t, err)
			// 150*0.9 - 100*0.2
			assert.Equal(t, "115.00", q.FinalPrice.StringFixed(2))
		})
	}
}

func TestPricer_ProductSpecificBaseIgnoresGeneral(t *testing.T) {
	lines := []*catalog.Product{product(1, "100.00"), product(2, "50.00")}

	q, err := NewPricer(DefaultMaxDiscountRatio).Price(lines, []*promotion.Discount{
		scoped("10", 1), general("20"), scoped("10", 2), general("10"),
	})
	require.NoError(t, err)
	// 150*0.8*0.9 - 10 - 5
	assert.Equal(t, "93.00", q.FinalPrice.StringFixed(2))
}

func TestPricer_ExcessiveDiscount(t *testing.T) {
	lines := []*catalog.Product{product(1, "100.00")}

	_, err := NewPricer(DefaultMaxDiscountRatio).Price(lines, []*promotion.Discount{general("80")})
	assert.ErrorIs(t, err, ErrExcessiveDiscount)

	_, err = NewPricer(DefaultMaxDiscountRatio).Price(lines, []*promotion.Discount{general("50"), general("60")})
	assert.ErrorIs(t, err, ErrExcessiveDiscount, "80 percent combined")

	_, err = NewPricer(decimal.RequireFromString("0.5")).Price(lines, []*promotion.Discount{general("50")})
	assert.ErrorIs(t, err, ErrExcessiveDiscount)
}

func TestNewPricer_FallsBackToDefaultRatio(t *testing.T) {
	_, err := NewPricer(decimal.Zero).Price([]*catalog.Product{product(1, "10")}, []*promotion.Discount{general("80")})
	assert.ErrorIs(t, err, ErrExcessiveDiscount)
}
