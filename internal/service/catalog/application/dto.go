package application

import (
	"encoding/json"

	"digigoods/internal/service/catalog/domain"
)

// ProductResponse 是商品列表接口的单项
type ProductResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Stock int         `json:"stock"`
}

func ToProductResponses(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ProductResponse{
			ID:    p.ID,
			Name:  p.Name,
			Price: json.Number(p.Price.StringFixed(2)),
			Stock: p.Stock,
		})
	}
	return out
}
