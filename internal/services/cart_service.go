package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/pkg/apperrors"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartView is the priced content of a cart.
type CartView struct {
	Items     []models.CartLine `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

// CartService manages per-user carts against live product stock.
type CartService struct {
	tx       TxRunner
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(tx TxRunner, carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{
		tx:       tx,
		carts:    carts,
		products: products,
	}
}

// Add increments the cart line for productID by quantity, inserting it if needed.
// The resulting quantity may not exceed the product's stock.
func (s *CartService) Add(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if productID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "Product ID is required")
	}
	if quantity < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "Quantity must be at least 1")
	}

	var item *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > product.StockQuantity {
			return insufficientStock(product, quantity)
		}

		item, err = s.carts.WithTx(tx).AddQuantity(ctx, userID, productID, quantity)
		if err != nil {
			return apperrors.Internal(err, "failed to add cart item")
		}
		if item.Quantity > product.StockQuantity {
			return insufficientStock(product, item.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SetQuantity overwrites the quantity of a line. A quantity of zero or less removes it,
// in which case the returned item is nil.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, s.Remove(ctx, userID, productID)
	}

	var item *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > product.StockQuantity {
			return insufficientStock(product, quantity)
		}

		carts := s.carts.WithTx(tx)
		if _, err := carts.Get(ctx, userID, productID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "Cart item not found")
			}
			return apperrors.Internal(err, "failed to load cart item")
		}
		item, err = carts.SetQuantity(ctx, userID, productID, quantity)
		if err != nil {
			return apperrors.Internal(err, "failed to update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes the line for productID.
func (s *CartService) Remove(ctx context.Context, userID, productID string) error {
	if err := s.carts.Delete(ctx, userID, productID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "Cart item not found")
		}
		return apperrors.Internal(err, "failed to remove cart item")
	}
	return nil
}

// Clear empties the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return apperrors.Internal(err, "failed to clear cart")
	}
	return nil
}

// GetCart returns the user's lines joined with live product data.
func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	lines, err := s.carts.ListLines(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load cart")
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	return &CartView{
		Items:     lines,
		Total:     cartTotal(lines),
		ItemCount: len(lines),
	}, nil
}

// GetTotal returns sum(price * quantity) over the user's cart.
func (s *CartService) GetTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	view, err := s.GetCart(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Total, nil
}

func (s *CartService) lockProduct(ctx context.Context, tx *gorm.DB, productID string) (*models.Product, error) {
	product, err := s.products.WithTx(tx).GetForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "Product not found")
		}
		return nil, apperrors.Internal(err, "failed to load product")
	}
	return product, nil
}

func cartTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func insufficientStock(product *models.Product, requested int) error {
	return apperrors.New(
		apperrors.CodeInsufficientStock,
		fmt.Sprintf("Only %d units of %s available in stock", product.StockQuantity, product.Name),
	).WithDetails(map[string]any{
		"product_id":   product.ID,
		"product_name": product.Name,
		"requested":    requested,
		"available":    product.StockQuantity,
	})
}
