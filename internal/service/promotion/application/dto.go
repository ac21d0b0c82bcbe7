package application

import (
	"encoding/json"

	"digigoods/internal/service/promotion/domain"
)

const dateLayout = "2006-01-02"

// DiscountResponse 是管理端折扣列表的单项
type DiscountResponse struct {
	Code                 string      `json:"code"`
	Type                 string      `json:"type"`
	Percentage           json.Number `json:"percentage"`
	ValidFrom            string      `json:"validFrom"`
	ValidUntil           string      `json:"validUntil"`
	RemainingUses        int         `json:"remainingUses"`
	ApplicableProductIDs []int64     `json:"applicableProductIds"`
}

func ToDiscountResponses(discounts []*domain.Discount) []DiscountResponse {
	out := make([]DiscountResponse, 0, len(discounts))
	for _, d := range discounts {
		ids := d.ApplicableProductIDs
		if ids == nil {
			ids = []int64{}
		}
		out = append(out, DiscountResponse{
			Code:                 d.Code,
			Type:                 string(d.Type),
			Percentage:           json.Number(d.Percentage.StringFixed(2)),
			ValidFrom:            d.ValidFrom.Format(dateLayout),
			ValidUntil:           d.ValidUntil.Format(dateLayout),
			RemainingUses:        d.RemainingUses,
			ApplicableProductIDs: ids,
		})
	}
	return out
}
