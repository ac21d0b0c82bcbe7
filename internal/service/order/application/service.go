// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"digigoods/internal/pkg/logger"
	"digigoods/internal/pkg/metrics"
	catalog "digigoods/internal/service/catalog/domain"
	"digigoods/internal/service/order/application/pipeline"
	"digigoods/internal/service/order/domain"
	"digigoods/internal/service/order/domain/port"
	promotion "digigoods/internal/service/promotion/domain"
)

// CheckoutService 编排一次结算：鉴权、幂等、加锁，然后在一个事务里跑完结算责任链，
// 提交后发布订单事件。
type CheckoutService struct {
	users     domain.UserRepository
	orders    domain.OrderRepository
	catalog   port.ProductCatalog
	discounts port.DiscountValidator
	tx        port.Transactor
	pricer    *domain.Pricer
	tracer    trace.Tracer

	locker    port.Locker
	idem      port.IdempotencyStore
	publisher port.OrderEventPublisher
	metrics   *metrics.CheckoutMetrics
	now       func() time.Time
	newID     func() string
	chain     pipeline.Handler
}

type Option func(*CheckoutService)

func WithLocker(l port.Locker) Option { return func(s *CheckoutService) { s.locker = l } }

func WithIdempotencyStore(st port.IdempotencyStore) Option {
	return func(s *CheckoutService) { s.idem = st }
}

func WithEventPublisher(p port.OrderEventPublisher) Option {
	return func(s *CheckoutService) { s.publisher = p }
}

func WithMetrics(m *metrics.CheckoutMetrics) Option { return func(s *CheckoutService) { s.metrics = m } }

// WithClock 替换订单创建时间的来源
func WithClock(now func() time.Time) Option { return func(s *CheckoutService) { s.now = now } }

// WithIDGenerator 替换订单号和事件号的生成方式
func WithIDGenerator(gen func() string) Option { return func(s *CheckoutService) { s.newID = gen } }

func NewCheckoutService(
	users domain.UserRepository,
	orders domain.OrderRepository,
	products port.ProductCatalog,
	discounts port.DiscountValidator,
	tx port.Transactor,
	pricer *domain.Pricer,
	tracer trace.Tracer,
	opts ...Option,
) *CheckoutService {
	s := &CheckoutService{
		users: users, orders: orders, catalog: products, discounts: discounts,
		tx: tx, pricer: pricer, tracer: tracer,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
		chain: pipeline.BuildChain(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessCheckout 为 actingUserID 执行一次结算。要么订单保存、库存和折扣次数全部扣减，要么什么都不发生。
func (s *CheckoutService) ProcessCheckout(ctx context.Context, req *CheckoutRequest, actingUserID int64) (resp *CheckoutResponse, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "CheckoutService.ProcessCheckout")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int64("user.acting_id", actingUserID),
		attribute.Int("cart.size", len(req.ProductIDs)),
		attribute.StringSlice("discount.codes", req.DiscountCodes),
	)
	var appliedTypes []string
	defer func() {
		s.metrics.Observe(Outcome(err), start, appliedTypes)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Outcome(err))
		}
	}()

	// 1. 鉴权，在任何外部调用之前
	if req.UserID != actingUserID {
		logger.Ctx(ctx).Warn().Int64("user_id", req.UserID).Int64("acting_user_id", actingUserID).Msg("checkout for another user rejected")
		return nil, domain.ErrUnauthorized
	}

	// 2. 幂等键
	if req.IdempotencyKey != "" && s.idem != nil {
		key := fmt.Sprintf("%d:%s", req.UserID, req.IdempotencyKey)
		var reserved bool
		reserved, err = s.idem.Reserve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !reserved {
			return nil, domain.ErrDuplicateCheckout
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
				logger.Ctx(ctx).Warn().Err(relErr).Str("key", key).Msg("failed to release idempotency key")
			}
		}()
	}

	// 3. 同一用户的结算串行执行
	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, fmt.Sprintf("checkout-user-%d", req.UserID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	// 4. 事务内执行责任链
	cctx := &pipeline.CheckoutContext{
		Ctx:           ctx,
		Tracer:        s.tracer,
		UserID:        req.UserID,
		ProductIDs:    req.ProductIDs,
		DiscountCodes: req.DiscountCodes,
		OrderID:       s.newID(),
		Now:           s.now(),
		Transactor:    s.tx,
		Users:         s.users,
		Orders:        s.orders,
		Catalog:       s.catalog,
		Discounts:     s.discounts,
		Pricer:        s.pricer,
	}
	if err := s.chain.Handle(cctx); err != nil {
		logger.Ctx(ctx).Info().Err(err).Str("outcome", Outcome(err)).Msg("checkout failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", cctx.Order.ID).
		Str("final_price", cctx.Order.FinalPrice.StringFixed(2)).
		Int64("duration_ms", logger.Since(start)).
		Msg("checkout committed")
	span.SetAttributes(attribute.String("order.id", cctx.Order.ID))
	for _, d := range cctx.Applied {
		appliedTypes = append(appliedTypes, string(d.Type))
	}

	// 5. 提交后发布事件，失败只记录日志
	s.publishOrderPlaced(ctx, cctx.Order)

	return &CheckoutResponse{
		Message:    SuccessMessage,
		FinalPrice: cctx.Order.FinalPrice,
		OrderID:    cctx.Order.ID,
	}, nil
}

// GetOrder 查询已保存的订单
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string, actingUserID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.GetOrder")
	defer span.End()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.UserID != actingUserID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) publishOrderPlaced(ctx context.Context, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	event := domain.NewOrderPlaced(s.newID(), order)
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to publish OrderPlaced event")
		trace.SpanFromContext(ctx).AddEvent("order event publish failed")
		return
	}
	trace.SpanFromContext(ctx).AddEvent("OrderPlaced published")
}

// Outcome 把结算错误归类为指标和日志使用的标签
func Outcome(err error) string {
	var invalid *promotion.InvalidDiscountError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, catalog.ErrProductNotFound):
		return "not_found"
	case errors.As(err, &invalid):
		return "invalid_discount"
	case errors.Is(err, domain.ErrExcessiveDiscount):
		return "excessive_discount"
	case errors.Is(err, catalog.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDuplicateCheckout):
		return "duplicate"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
