package repositories

import (
	"context"

	"gorm.io/gorm"

	"warung/internal/models"
)

// OrderRepository defines the interface for order data access. Orders are append-only.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, userID, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
}
