package infrastructure

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"digigoods/internal/pkg/database"
	"digigoods/internal/service/catalog/domain"
)

func newTestRepo(t *testing.T) (*GormProductRepository, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db, Models()...))
	return NewGormProductRepository(db), db
}

func seed(t *testing.T, repo *GormProductRepository, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestGormProductRepository_FindByIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	a := seed(t, repo, "E-book", "19.99", 5)
	b := seed(t, repo, "Course", "50.00", 1)

	got, err := repo.FindByIDs(context.Background(), []int64{a.ID, b.ID, 404})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byName := map[string]*domain.Product{}
	for _, p := range got {
		byName[p.Name] = p
	}
	assert.True(t, decimal.RequireFromString("19.99").Equal(byName["E-book"].Price))
	assert.Equal(t, 1, byName["Course"].Stock)

	none, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormProductRepository_DecrementStock(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	p := seed(t, repo, "E-book", "10.00", 2)

	require.NoError(t, repo.DecrementStock(ctx, p.ID, 2))
	assert.ErrorIs(t, repo.DecrementStock(ctx, p.ID, 1), domain.ErrInsufficientStock)
	assert.ErrorIs(t, repo.DecrementStock(ctx, 404, 1), domain.ErrProductNotFound)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 0, all[0].Stock)
}

func TestGormProductRepository_DecrementStockRollsBackWithTransaction(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	p := seed(t, repo, "E-book", "10.00", 3)

	err := database.NewTransactor(db).WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.DecrementStock(ctx, p.ID, 2))
		return repo.DecrementStock(ctx, p.ID, 2)
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err := repo.FindByIDs(ctx, []int64{p.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, got[0].Stock)
}
