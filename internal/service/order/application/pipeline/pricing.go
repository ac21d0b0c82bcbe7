package pipeline

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PricingHandler 计算最终价格并检查折扣上限。这一步之前没有任何写操作。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(cctx *CheckoutContext) error {
	_, span := cctx.Tracer.Start(cctx.Ctx, "checkout.Pricing")

	quote, err := cctx.Pricer.Price(cctx.Lines, cctx.Applied)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pricing rejected")
		span.End()
		return err
	}
	span.SetAttributes(
		attribute.String("price.subtotal", quote.Subtotal.StringFixed(2)),
		attribute.String("price.final", quote.FinalPrice.StringFixed(2)),
	)
	span.End()

	cctx.Quote = quote
	return h.executeNext(cctx)
}
