package pipeline

import (
	"go.opentelemetry.io/otel/codes"

	"digigoods/internal/service/order/domain"
)

// StockHandler 为每件商品扣减库存，库存不足时整单失败。
type StockHandler struct {
	NextHandler
}

func (h *StockHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.DecrementStock")
	if err := cctx.Catalog.ValidateAndDecrementStock(ctx, cctx.ProductIDs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock decrement failed")
		span.End()
		return err
	}
	span.End()
	return h.executeNext(cctx)
}

// DiscountUsageHandler 把每个已应用折扣的剩余次数减一。
type DiscountUsageHandler struct {
	NextHandler
}

func (h *DiscountUsageHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.UpdateDiscountUsage")
	if err := cctx.Discounts.UpdateDiscountUsage(ctx, cctx.Applied); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount usage update failed")
		span.End()
		return err
	}
	span.End()
	return h.executeNext(cctx)
}

// PersistOrderHandler 保存订单，是链的最后一步。
type PersistOrderHandler struct {
	NextHandler
}

func (h *PersistOrderHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.SaveOrder")

	items := make([]domain.OrderItem, 0, len(cctx.Lines))
	for _, p := range cctx.Lines {
		items = append(items, domain.OrderItem{ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price})
	}
	codesApplied := make([]string, 0, len(cctx.Applied))
	for _, d := range cctx.Applied {
		codesApplied = append(codesApplied, d.Code)
	}
	order := &domain.Order{
		ID:            cctx.OrderID,
		UserID:        cctx.UserID,
		Items:         items,
		Subtotal:      cctx.Quote.Subtotal,
		DiscountTotal: cctx.Quote.DiscountTotal,
		FinalPrice:    cctx.Quote.FinalPrice,
		DiscountCodes: codesApplied,
		CreatedAt:     cctx.Now,
	}

	if err := cctx.Orders.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save order failed")
		span.End()
		return err
	}
	span.End()

	cctx.Order = order
	return h.executeNext(cctx)
}
