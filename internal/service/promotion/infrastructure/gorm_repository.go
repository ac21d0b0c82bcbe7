package infrastructure

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"digigoods/internal/pkg/database"
	"digigoods/internal/service/promotion/domain"
)

// GormDiscountRepository 是 DiscountRepository 的 GORM 实现
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository 创建一个新的 GORM 仓储实例
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

// FindByCodes 使用 Preload 一并加载适用商品。
// MySQL 默认排序规则不区分大小写，这里再按原样比对一次，保证 code 大小写敏感。
func (r *GormDiscountRepository) FindByCodes(ctx context.Context, codes []string) ([]*domain.Discount, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var models []DiscountModel
	err := database.Conn(ctx, r.db).Preload("Products").Where("code IN ?", codes).Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query discounts by codes")
	}

	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}
	out := make([]*domain.Discount, 0, len(models))
	for i := range models {
		if _, ok := wanted[models[i].Code]; ok {
			out = append(out, toDomainSorted(&models[i]))
		}
	}
	return out, nil
}

func (r *GormDiscountRepository) FindAll(ctx context.Context) ([]*domain.Discount, error) {
	var models []DiscountModel
	if err := database.Conn(ctx, r.db).Preload("Products").Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query all discounts")
	}
	out := make([]*domain.Discount, 0, len(models))
	for i := range models {
		out = append(out, toDomainSorted(&models[i]))
	}
	return out, nil
}

// DecrementRemainingUses 条件更新，remaining_uses 为 0 的行不会被更新，计数不会变成负数。
func (r *GormDiscountRepository) DecrementRemainingUses(ctx context.Context, code string) error {
	conn := database.Conn(ctx, r.db)
	res := conn.Model(&DiscountModel{}).
		Where("code = ? AND remaining_uses > 0", code).
		UpdateColumn("remaining_uses", gorm.Expr("remaining_uses - 1"))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "decrement remaining uses of %s", code)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := conn.Model(&DiscountModel{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check discount %s", code)
	}
	if count == 0 {
		return &domain.InvalidDiscountError{Code: code, Reason: domain.ReasonNotFound}
	}
	return &domain.InvalidDiscountError{Code: code, Reason: domain.ReasonNoRemainingUses}
}

// Create 写入折扣及其适用商品，供初始化数据和测试使用。
func (r *GormDiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	model := FromDomainDiscount(d)
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create discount %s", d.Code)
	}
	d.ID = model.ID
	return nil
}

func toDomainSorted(model *DiscountModel) *domain.Discount {
	d := ToDomainDiscount(model)
	sort.Slice(d.ApplicableProductIDs, func(i, j int) bool { return d.ApplicableProductIDs[i] < d.ApplicableProductIDs[j] })
	return d
}

// Models 返回需要迁移的表模型。
func Models() []interface{} {
	return []interface{}{&DiscountModel{}, &DiscountProductModel{}}
}
