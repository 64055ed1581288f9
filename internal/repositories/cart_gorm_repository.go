package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"warung/internal/models"
)

var cartConflictColumns = []clause.Column{{Name: "user_id"}, {Name: "product_id"}}

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// WithTx returns a repository bound to tx.
func (r *GORMCartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &GORMCartRepository{db: tx}
}

// Get retrieves the line for (userID, productID).
func (r *GORMCartRepository) Get(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

// AddQuantity upserts the line with quantity = quantity + excluded.quantity in a single statement.
func (r *GORMCartRepository) AddQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	return r.upsert(ctx, userID, productID, quantity, clause.Assignments(map[string]any{
		"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	}))
}

// SetQuantity upserts the line with the given quantity.
func (r *GORMCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	return r.upsert(ctx, userID, productID, quantity, clause.AssignmentColumns([]string{"quantity", "updated_at"}))
}

func (r *GORMCartRepository) upsert(ctx context.Context, userID, productID string, quantity int, set clause.Set) (*models.CartItem, error) {
	now := time.Now().UTC()
	item := models.CartItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: cartConflictColumns, DoUpdates: set}).
		Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return r.Get(ctx, userID, productID)
}

// Delete removes a single line. Missing lines return ErrNotFound.
func (r *GORMCartRepository) Delete(ctx context.Context, userID, productID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every line for userID.
func (r *GORMCartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ListLines joins cart lines with products that have not been deleted.
func (r *GORMCartRepository) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Table("cart_items").
		Select("cart_items.product_id, cart_items.quantity, products.name, products.price, products.stock_quantity, products.image_url").
		Joins("JOIN products ON products.id = cart_items.product_id AND products.deleted_at IS NULL").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.created_at ASC, cart_items.product_id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	return lines, nil
}
