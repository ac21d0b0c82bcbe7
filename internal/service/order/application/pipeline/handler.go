package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	catalog "digigoods/internal/service/catalog/domain"
	"digigoods/internal/service/order/domain"
	"digigoods/internal/service/order/domain/port"
	promotion "digigoods/internal/service/promotion/domain"
)

// CheckoutContext 在责任链中传递一次结算的输入、依赖和各步骤的产出。
type CheckoutContext struct {
	Ctx    context.Context // 进入事务后会被替换为绑定了事务的 ctx
	Tracer trace.Tracer

	// 输入
	UserID        int64
	ProductIDs    []int64
	DiscountCodes []string
	OrderID       string
	Now           time.Time

	// 依赖的出站端口
	Transactor port.Transactor
	Users      domain.UserRepository
	Orders     domain.OrderRepository
	Catalog    port.ProductCatalog
	Discounts  port.DiscountValidator
	Pricer     *domain.Pricer

	// 各步骤产出
	User    *domain.User
	Lines   []*catalog.Product // 每件商品一项，顺序与 ProductIDs 一致
	Applied []*promotion.Discount
	Quote   domain.Quote
	Order   *domain.Order
}

// Handler 定义了责任链中每个节点的接口
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(cctx *CheckoutContext) error
}

type NextHandler struct {
	next Handler
}

// SetNext 返回 handler 本身，便于链式组装
func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(cctx *CheckoutContext) error {
	if h.next != nil {
		return h.next.Handle(cctx)
	}
	return nil
}

// BuildChain 组装结算责任链。事务处理器在最外层，
// 后面所有步骤共用一个事务，任何一步失败都会整体回滚。
func BuildChain() Handler {
	head := new(TransactionHandler)
	head.SetNext(new(UserCheckHandler)).
		SetNext(new(ProductResolutionHandler)).
		SetNext(new(DiscountResolutionHandler)).
		SetNext(new(PricingHandler)).
		SetNext(new(StockHandler)).
		SetNext(new(DiscountUsageHandler)).
		SetNext(new(PersistOrderHandler))
	return head
}
