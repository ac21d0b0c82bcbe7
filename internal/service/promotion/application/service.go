package application

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"digigoods/internal/pkg/logger"
	"digigoods/internal/service/promotion/domain"
)

// DiscountService 负责折扣码的查询、校验和使用次数扣减
type DiscountService struct {
	repo   domain.DiscountRepository
	filter domain.FilterEngine
	tracer trace.Tracer
	now    func() time.Time
	loc    *time.Location
}

type Option func(*DiscountService)

// WithClock 替换当前时间来源，测试中固定日期用。
func WithClock(now func() time.Time) Option {
	return func(s *DiscountService) { s.now = now }
}

// WithLocation 指定判断"今天"时使用的时区，默认 UTC。
func WithLocation(loc *time.Location) Option {
	return func(s *DiscountService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithFilterEngine 启用管理端的过滤表达式。
func WithFilterEngine(f domain.FilterEngine) Option {
	return func(s *DiscountService) { s.filter = f }
}

func NewDiscountService(repo domain.DiscountRepository, tracer trace.Tracer, opts ...Option) *DiscountService {
	s := &DiscountService{repo: repo, tracer: tracer, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndGetDiscounts 按输入顺序校验折扣码，遇到第一个不可用的码立即返回 InvalidDiscountError。
// 重复的码只保留第一次出现。discountCodes 为空时不访问存储。
func (s *DiscountService) ValidateAndGetDiscounts(ctx context.Context, discountCodes []string) ([]*domain.Discount, error) {
	if len(discountCodes) == 0 {
		return []*domain.Discount{}, nil
	}
	ctx, span := s.tracer.Start(ctx, "DiscountService.ValidateAndGetDiscounts")
	defer span.End()

	ordered := distinctCodes(discountCodes)
	span.SetAttributes(attribute.StringSlice("discount.codes", ordered))

	found, err := s.repo.FindByCodes(ctx, ordered)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find discounts failed")
		return nil, err
	}
	byCode := make(map[string]*domain.Discount, len(found))
	for _, d := range found {
		byCode[d.Code] = d
	}

	today := s.now().In(s.loc)
	out := make([]*domain.Discount, 0, len(ordered))
	for _, code := range ordered {
		d, ok := byCode[code]
		if !ok {
			err := &domain.InvalidDiscountError{Code: code, Reason: domain.ReasonNotFound}
			span.RecordError(err)
			return nil, err
		}
		if err := d.Validate(today); err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetAllDiscounts 返回全部折扣码，不做任何过滤
func (s *DiscountService) GetAllDiscounts(ctx context.Context) ([]*domain.Discount, error) {
	ctx, span := s.tracer.Start(ctx, "DiscountService.GetAllDiscounts")
	defer span.End()

	all, err := s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return all, nil
}

// FilterDiscounts 返回满足表达式的折扣码；expr 为空时等价于 GetAllDiscounts。
func (s *DiscountService) FilterDiscounts(ctx context.Context, expr string) ([]*domain.Discount, error) {
	if expr == "" || s.filter == nil {
		return s.GetAllDiscounts(ctx)
	}
	pred, err := s.filter.Compile(expr)
	if err != nil {
		return nil, err
	}
	all, err := s.GetAllDiscounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Discount, 0, len(all))
	for _, d := range all {
		ok, err := pred(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// UpdateDiscountUsage 在存储层对每个折扣的剩余次数减一，不修改传入的对象。
// 按 code 排序后执行，保证并发事务的加锁顺序一致。
func (s *DiscountService) UpdateDiscountUsage(ctx context.Context, discounts []*domain.Discount) error {
	if len(discounts) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "DiscountService.UpdateDiscountUsage")
	defer span.End()

	sorted := make([]*domain.Discount, len(discounts))
	copy(sorted, discounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	for _, d := range sorted {
		if err := s.repo.DecrementRemainingUses(ctx, d.Code); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decrement remaining uses failed")
			logger.Ctx(ctx).Warn().Err(err).Str("code", d.Code).Msg("discount usage update rejected")
			return err
		}
	}
	return nil
}

func distinctCodes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
