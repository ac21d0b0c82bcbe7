package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	catalog "digigoods/internal/service/catalog/domain"
)

// UserCheckHandler 确认下单用户存在，必须在查询商品和折扣之前执行。
type UserCheckHandler struct {
	NextHandler
}

func (h *UserCheckHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.UserCheck")
	span.SetAttributes(attribute.Int64("user.id", cctx.UserID))

	user, err := cctx.Users.FindByID(ctx, cctx.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		span.End()
		return err
	}
	span.End()

	cctx.User = user
	return h.executeNext(cctx)
}

// ProductResolutionHandler 把商品 id 展开成逐件的商品列表，重复的 id 保留。
type ProductResolutionHandler struct {
	NextHandler
}

func (h *ProductResolutionHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.ResolveProducts")
	span.SetAttributes(attribute.Int("cart.size", len(cctx.ProductIDs)))

	products, err := cctx.Catalog.GetProductsByIDs(ctx, cctx.ProductIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product resolution failed")
		span.End()
		return err
	}

	byID := make(map[int64]*catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]*catalog.Product, 0, len(cctx.ProductIDs))
	for _, id := range cctx.ProductIDs {
		p, ok := byID[id]
		if !ok {
			err := fmt.Errorf("%w: id %d", catalog.ErrProductNotFound, id)
			span.RecordError(err)
			span.End()
			return err
		}
		lines = append(lines, p)
	}
	span.End()

	cctx.Lines = lines
	return h.executeNext(cctx)
}

// DiscountResolutionHandler 通过折扣校验器取得可用折扣，校验失败原样返回。
type DiscountResolutionHandler struct {
	NextHandler
}

func (h *DiscountResolutionHandler) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.ResolveDiscounts")
	span.SetAttributes(attribute.StringSlice("discount.codes", cctx.DiscountCodes))

	discounts, err := cctx.Discounts.ValidateAndGetDiscounts(ctx, cctx.DiscountCodes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount validation failed")
		span.End()
		return err
	}
	span.End()

	cctx.Applied = discounts
	return h.executeNext(cctx)
}
