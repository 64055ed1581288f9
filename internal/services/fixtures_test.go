package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/internal/testutil"
	"warung/pkg/database"
)

type storefront struct {
	db       *database.Client
	users    *repositories.GORMUserRepository
	products *repositories.GORMProductRepository
	carts    *repositories.GORMCartRepository
	orders   *repositories.GORMOrderRepository
}

func newStorefront(t *testing.T) *storefront {
	db := testutil.OpenSQLite(t, repositories.Models()...)
	return &storefront{
		db:       db,
		users:    repositories.NewGORMUserRepository(db.DB()),
		products: repositories.NewGORMProductRepository(db.DB()),
		carts:    repositories.NewGORMCartRepository(db.DB()),
		orders:   repositories.NewGORMOrderRepository(db.DB()),
	}
}

func (s *storefront) user(t *testing.T) *models.User {
	t.Helper()
	name := uuid.NewString()[:8]
	user := &models.User{
		Username:           name,
		UsernameNormalized: name,
		Email:              name + "@x.com",
		EmailNormalized:    name + "@x.com",
		PasswordHash:       "hash",
		Role:               models.RoleUser,
	}
	require.NoError(t, s.users.Create(context.Background(), user))
	return user
}

func (s *storefront) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock}
	require.NoError(t, s.products.Create(context.Background(), product))
	return product
}

func (s *storefront) stock(t *testing.T, productID string) int {
	t.Helper()
	product, err := s.products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return product.StockQuantity
}

func (s *storefront) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.DB().Model(model).Count(&n).Error)
	return n
}
