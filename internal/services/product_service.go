package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/pkg/apperrors"
)

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,min=3,max=100"`
	Description   string          `json:"description" validate:"max=500"`
	Category      string          `json:"category" validate:"max=50"`
	ImageURL      string          `json:"image_url" validate:"omitempty,url,max=500"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

// StockInput is the admin payload for overwriting a product's stock level.
type StockInput struct {
	StockQuantity *int `json:"stock_quantity" validate:"required,gte=0"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	tx        TxRunner
	repo      repositories.ProductRepository
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

// NewProductService creates a new ProductService.
func NewProductService(tx TxRunner, repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		tx:        tx,
		repo:      repo,
		validate:  newValidator(),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// GetAllProducts retrieves products matching filter.
func (s *ProductService) GetAllProducts(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list products")
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, productError(err, "failed to load product")
	}
	return product, nil
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	product, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, apperrors.Internal(err, "failed to create product")
	}
	return product, nil
}

// UpdateProduct replaces the mutable fields of product id.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	product, err := s.build(in)
	if err != nil {
		return nil, err
	}
	product.ID = id
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, productError(err, "failed to update product")
	}
	return s.GetProductByID(ctx, id)
}

// DeleteProduct removes product id from the catalog.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return productError(err, "failed to delete product")
	}
	return nil
}

// UpdateStock sets the stock level of product id under a row lock, so it never
// interleaves with a checkout decrementing the same row.
func (s *ProductService) UpdateStock(ctx context.Context, id string, in StockInput) (*models.Product, error) {
	if err := s.validate.Struct(in); err != nil {
		if in.StockQuantity == nil {
			return nil, apperrors.New(apperrors.CodeValidation, "Stock quantity is required")
		}
		return nil, validationError(err)
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products := s.repo.WithTx(tx)
		locked, err := products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := products.SetStock(ctx, id, *in.StockQuantity); err != nil {
			return err
		}
		locked.StockQuantity = *in.StockQuantity
		product = locked
		return nil
	})
	if err != nil {
		return nil, productError(err, "failed to update stock")
	}
	return product, nil
}

// ListCategories returns the distinct categories that currently have stock.
func (s *ProductService) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *ProductService) build(in ProductInput) (*models.Product, error) {
	in.Name = s.clean(in.Name)
	in.Description = s.clean(in.Description)
	in.Category = s.clean(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if !in.Price.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "Price must be greater than zero").
			WithDetails(map[string]string{"price": "Field 'price' failed on the 'gt' tag"})
	}

	return &models.Product{
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		ImageURL:      in.ImageURL,
		Price:         in.Price.Round(2),
		StockQuantity: in.StockQuantity,
	}, nil
}

func (s *ProductService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func productError(err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "Product not found")
	}
	return apperrors.Internal(err, message)
}
