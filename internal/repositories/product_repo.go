package repositories

import (
	"context"

	"gorm.io/gorm"

	"warung/internal/models"
)

// ProductFilter narrows catalog listings. Empty fields are ignored.
type ProductFilter struct {
	Category string
	Search   string
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	GetAll(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetForUpdate reads a product and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Product, error)
	// LockByIDs locks the given product rows in id order and returns the live ones.
	LockByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	// DecrementStock subtracts quantity only while enough stock remains.
	DecrementStock(ctx context.Context, id string, quantity int) error
	// SetStock overwrites the stock level; a missing product returns ErrNotFound.
	SetStock(ctx context.Context, id string, quantity int) error
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
