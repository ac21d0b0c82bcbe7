package infrastructure

import (
	"digigoods/internal/service/promotion/domain"
)

// ToDomainDiscount 将数据库模型转换为领域模型
func ToDomainDiscount(model *DiscountModel) *domain.Discount {
	if model == nil {
		return nil
	}
	var ids []int64
	for _, p := range model.Products {
		ids = append(ids, p.ProductID)
	}
	return &domain.Discount{
		ID:                   model.ID,
		Code:                 model.Code,
		Percentage:           model.Percentage,
		Type:                 domain.DiscountType(model.Type),
		ValidFrom:            model.ValidFrom,
		ValidUntil:           model.ValidUntil,
		RemainingUses:        model.RemainingUses,
		ApplicableProductIDs: ids,
	}
}

// FromDomainDiscount 将领域模型转换为数据库模型，关联的商品一并转换（用于插入）
func FromDomainDiscount(d *domain.Discount) *DiscountModel {
	if d == nil {
		return nil
	}
	model := &DiscountModel{
		ID:            d.ID,
		Code:          d.Code,
		Percentage:    d.Percentage,
		Type:          string(d.Type),
		ValidFrom:     d.ValidFrom,
		ValidUntil:    d.ValidUntil,
		RemainingUses: d.RemainingUses,
	}
	for _, id := range d.ApplicableProductIDs {
		model.Products = append(model.Products, DiscountProductModel{DiscountID: d.ID, ProductID: id})
	}
	return model
}
