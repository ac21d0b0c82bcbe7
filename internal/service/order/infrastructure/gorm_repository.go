package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"digigoods/internal/pkg/database"
	"digigoods/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 在当前事务中插入订单和全部明细
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := fromDomainOrder(order)
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrapf(err, "save order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := database.Conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query order %s", id)
	}
	return toDomainOrder(&model), nil
}

// GormUserRepository 是 domain.UserRepository 的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrUserNotFound, "user %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query user %d", id)
	}
	return toDomainUser(&model), nil
}

// Create 写入一个用户，供初始化数据和测试使用。
func (r *GormUserRepository) Create(ctx context.Context, u *domain.User) error {
	model := &UserModel{ID: u.ID, Username: u.Username}
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrap(err, "create user")
	}
	u.ID = model.ID
	return nil
}

// Models 返回需要迁移的表模型。
func Models() []interface{} {
	return []interface{}{&UserModel{}, &OrderModel{}, &OrderItemModel{}}
}
