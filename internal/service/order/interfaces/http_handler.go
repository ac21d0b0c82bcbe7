package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"digigoods/internal/pkg/web"
	catalog "digigoods/internal/service/catalog/domain"
	"digigoods/internal/service/order/application"
	"digigoods/internal/service/order/domain"
	promotion "digigoods/internal/service/promotion/domain"
)

// IdempotencyKeyHeader 是客户端提交结算时可选携带的幂等键
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandler 封装了结算相关的 HTTP 处理器
type CheckoutHandler struct {
	service *application.CheckoutService
}

// NewCheckoutHandler 创建一个新的 HTTP 处理器实例
func NewCheckoutHandler(service *application.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// RegisterRoutes 在 chi 路由上注册所有路由，全部需要登录用户
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/api/checkout", h.handleCheckout)
		r.Get("/api/orders/{orderID}", h.handleGetOrder)
	})
}

type checkoutBody struct {
	UserID        int64    `json:"userId"`
	ProductIDs    []int64  `json:"productIds"`
	DiscountCodes []string `json:"discountCodes"`
}

type checkoutResult struct {
	Message    string      `json:"message"`
	FinalPrice json.Number `json:"finalPrice"`
	OrderID    string      `json:"orderId"`
}

type orderItemResult struct {
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	UnitPrice   json.Number `json:"unitPrice"`
}

type orderResult struct {
	OrderID       string            `json:"orderId"`
	UserID        int64             `json:"userId"`
	Items         []orderItemResult `json:"items"`
	Subtotal      json.Number       `json:"subtotal"`
	DiscountTotal json.Number       `json:"discountTotal"`
	FinalPrice    json.Number       `json:"finalPrice"`
	DiscountCodes []string          `json:"discountCodes"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func (h *CheckoutHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	actingUserID, _ := ActingUserID(r.Context())

	var body checkoutBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID <= 0 {
		web.WriteError(w, r, http.StatusBadRequest, "userId is required")
		return
	}
	if len(body.ProductIDs) == 0 {
		web.WriteError(w, r, http.StatusBadRequest, "productIds must not be empty")
		return
	}

	resp, err := h.service.ProcessCheckout(r.Context(), &application.CheckoutRequest{
		UserID:         body.UserID,
		ProductIDs:     body.ProductIDs,
		DiscountCodes:  body.DiscountCodes,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	}, actingUserID)
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	web.WriteJSON(w, r, http.StatusOK, checkoutResult{
		Message:    resp.Message,
		FinalPrice: json.Number(resp.FinalPrice.StringFixed(2)),
		OrderID:    resp.OrderID,
	})
}

func (h *CheckoutHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	actingUserID, _ := ActingUserID(r.Context())

	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"), actingUserID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		web.WriteError(w, r, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("get order failed")
		web.WriteError(w, r, http.StatusInternalServerError, "failed to load order")
		return
	}

	items := make([]orderItemResult, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orderItemResult{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   json.Number(it.UnitPrice.StringFixed(2)),
		})
	}
	web.WriteJSON(w, r, http.StatusOK, orderResult{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Items:         items,
		Subtotal:      json.Number(order.Subtotal.StringFixed(2)),
		DiscountTotal: json.Number(order.DiscountTotal.StringFixed(2)),
		FinalPrice:    json.Number(order.FinalPrice.StringFixed(2)),
		DiscountCodes: order.DiscountCodes,
		CreatedAt:     order.CreatedAt,
	})
}

// writeCheckoutError 把领域错误映射为 HTTP 状态码
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *promotion.InvalidDiscountError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		web.WriteError(w, r, http.StatusForbidden, domain.ErrUnauthorized.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, catalog.ErrProductNotFound):
		web.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		web.WriteError(w, r, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, domain.ErrExcessiveDiscount):
		web.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, catalog.ErrInsufficientStock), errors.Is(err, domain.ErrDuplicateCheckout):
		web.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		web.WriteError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("checkout failed")
		web.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
