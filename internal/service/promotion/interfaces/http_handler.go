package interfaces

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"digigoods/internal/pkg/web"
	"digigoods/internal/service/promotion/application"
	"digigoods/internal/service/promotion/domain"
)

// DiscountHandler 封装了折扣码的管理端 HTTP 处理器
type DiscountHandler struct {
	service *application.DiscountService
}

// NewDiscountHandler 创建一个新的 HTTP 处理器实例
func NewDiscountHandler(service *application.DiscountService) *DiscountHandler {
	return &DiscountHandler{service: service}
}

// RegisterRoutes 在 chi 路由上注册所有路由
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/discounts", h.handleListDiscounts)
}

// handleListDiscounts 支持 ?filter=<CEL 表达式>
func (h *DiscountHandler) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.service.FilterDiscounts(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilter) {
			web.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list discounts failed")
		web.WriteError(w, r, http.StatusInternalServerError, "failed to list discounts")
		return
	}
	web.WriteJSON(w, r, http.StatusOK, application.ToDiscountResponses(discounts))
}
