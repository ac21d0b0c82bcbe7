package interfaces

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"digigoods/internal/pkg/web"
	"digigoods/internal/service/catalog/application"
)

// ProductHandler 封装了商品目录的 HTTP 处理器
type ProductHandler struct {
	service *application.ProductService
}

func NewProductHandler(service *application.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes 在 chi 路由上注册商品相关路由
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/products", h.handleListProducts)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list products failed")
		web.WriteError(w, r, http.StatusInternalServerError, "failed to list products")
		return
	}
	web.WriteJSON(w, r, http.StatusOK, application.ToProductResponses(products))
}
