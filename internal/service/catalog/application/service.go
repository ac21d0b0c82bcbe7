package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"digigoods/internal/pkg/logger"
	"digigoods/internal/service/catalog/domain"
)

// ProductService 提供商品查询和库存扣减用例
type ProductService struct {
	repo   domain.ProductRepository
	tracer trace.Tracer
}

func NewProductService(repo domain.ProductRepository, tracer trace.Tracer) *ProductService {
	return &ProductService{repo: repo, tracer: tracer}
}

// GetProductsByIDs 解析请求中的商品 id。ids 可以重复，返回值按 id 首次出现的顺序去重；
// 只要有一个 id 不存在就返回 ErrProductNotFound。
func (s *ProductService) GetProductsByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.GetProductsByIDs")
	defer span.End()

	distinct := distinctIDs(ids)
	span.SetAttributes(attribute.Int("product.requested", len(ids)), attribute.Int("product.distinct", len(distinct)))

	products, err := s.repo.FindByIDs(ctx, distinct)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find products failed")
		return nil, err
	}

	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]*domain.Product, 0, len(distinct))
	var missing []string
	for _, id := range distinct {
		p, ok := byID[id]
		if !ok {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		err := fmt.Errorf("%w: id %s", domain.ErrProductNotFound, strings.Join(missing, ", "))
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// ValidateAndDecrementStock 为每次出现扣减一个库存。同一商品的多次出现合并成一次扣减，
// 并按 id 升序执行，保证并发事务的加锁顺序一致。
func (s *ProductService) ValidateAndDecrementStock(ctx context.Context, ids []int64) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.ValidateAndDecrementStock")
	defer span.End()

	qty := make(map[int64]int, len(ids))
	for _, id := range ids {
		qty[id]++
	}
	sorted := make([]int64, 0, len(qty))
	for id := range qty {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if err := s.repo.DecrementStock(ctx, id, qty[id]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decrement stock failed")
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", id).Int("qty", qty[id]).Msg("stock decrement rejected")
			return err
		}
	}
	span.AddEvent("stock decremented")
	return nil
}

// ListProducts 返回全部商品
func (s *ProductService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ListProducts")
	defer span.End()

	products, err := s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return products, nil
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
