package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"digigoods/internal/pkg/database"
	"digigoods/internal/service/catalog/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository 创建一个新的 GORM 仓储实例
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []ProductModel
	if err := database.Conn(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query products by ids")
	}
	return toDomainProducts(models), nil
}

func (r *GormProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := database.Conn(ctx, r.db).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query all products")
	}
	return toDomainProducts(models), nil
}

// DecrementStock 用条件更新代替先读后写：只有 stock >= qty 的行才会被更新，
// 并发结算同一商品时由数据库行锁串行化，库存不会变成负数。
func (r *GormProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	conn := database.Conn(ctx, r.db)
	res := conn.Model(&ProductModel{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "decrement stock of product %d", id)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := conn.Model(&ProductModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check product %d", id)
	}
	if count == 0 {
		return errors.Wrapf(domain.ErrProductNotFound, "product %d", id)
	}
	return errors.Wrapf(domain.ErrInsufficientStock, "product %d", id)
}

// Create 写入一个商品，供初始化数据和测试使用。
func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	model := FromDomainProduct(p)
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrap(err, "create product")
	}
	p.ID = model.ID
	return nil
}

func toDomainProducts(models []ProductModel) []*domain.Product {
	out := make([]*domain.Product, 0, len(models))
	for i := range models {
		out = append(out, ToDomainProduct(&models[i]))
	}
	return out
}

// Models 返回需要迁移的表模型。
func Models() []interface{} {
	return []interface{}{&ProductModel{}}
}
