package repositories

import (
	"errors"

	"warung/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStockConflict is returned when a guarded stock decrement matches no row.
	ErrStockConflict = errors.New("stock changed concurrently")
)

// Models lists every persisted model, in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	}
}
