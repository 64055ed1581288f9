package repositories

import (
	"context"

	"gorm.io/gorm"

	"warung/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Get(ctx context.Context, userID, productID string) (*models.CartItem, error)
	// AddQuantity inserts the line or atomically increments the existing quantity.
	AddQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	// SetQuantity inserts the line or overwrites the existing quantity.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	Delete(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
	// ListLines returns the user's cart joined with the live product rows.
	ListLines(ctx context.Context, userID string) ([]models.CartLine, error)
}
