package infrastructure

import "digigoods/internal/service/catalog/domain"

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:    model.ID,
		Name:  model.Name,
		Price: model.Price,
		Stock: model.Stock,
	}
}

// FromDomainProduct 将领域模型转换为数据库模型（用于插入）
func FromDomainProduct(p *domain.Product) *ProductModel {
	if p == nil {
		return nil
	}
	return &ProductModel{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price,
		Stock: p.Stock,
	}
}
