package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/pkg/apperrors"
	"warung/pkg/logger"
	"warung/pkg/rabbitmq"
)

const (
	maxIdempotencyKeyLength = 100
	maxTransferAttempts     = 3
)

// errCartChanged aborts a transfer whose cart gained products after the locks were taken.
var errCartChanged = errors.New("cart changed during checkout")

// OrderPublisher announces committed orders.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, event rabbitmq.OrderPlacedEvent) error
}

// CheckoutRecorder observes checkout outcomes.
type CheckoutRecorder interface {
	ObservePlaced(elapsed time.Duration)
	ObserveFailed(reason string, elapsed time.Duration)
}

// OrderService converts carts into orders inside a single transaction.
type OrderService struct {
	tx        TxRunner
	carts     repositories.CartRepository
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	taxRate   decimal.Decimal
	publisher OrderPublisher
	metrics   CheckoutRecorder
	log       *logger.Logger
	now       func() time.Time
}

// OrderServiceOption customises an OrderService.
type OrderServiceOption func(*OrderService)

// WithPublisher publishes order.placed events after commit.
func WithPublisher(p OrderPublisher) OrderServiceOption {
	return func(s *OrderService) { s.publisher = p }
}

// WithCheckoutRecorder records checkout metrics.
func WithCheckoutRecorder(m CheckoutRecorder) OrderServiceOption {
	return func(s *OrderService) { s.metrics = m }
}

// WithOrderLogger sets the logger used for post-commit failures.
func WithOrderLogger(l *logger.Logger) OrderServiceOption {
	return func(s *OrderService) { s.log = l }
}

// WithTaxRate applies rate to the subtotal of every order.
func WithTaxRate(rate decimal.Decimal) OrderServiceOption {
	return func(s *OrderService) { s.taxRate = rate }
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	tx TxRunner,
	carts repositories.CartRepository,
	products repositories.ProductRepository,
	orders repositories.OrderRepository,
	opts ...OrderServiceOption,
) *OrderService {
	s := &OrderService{
		tx:       tx,
		carts:    carts,
		products: products,
		orders:   orders,
		taxRate:  decimal.Zero,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder turns the user's cart into an order. Stock is checked and decremented under
// row locks; on any failure the cart and stock are left untouched. When idempotencyKey
// matches an earlier order of the same user, that order is returned and created is false.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, idempotencyKey string) (order *models.Order, created bool, err error) {
	started := s.now()
	defer func() {
		elapsed := s.now().Sub(started)
		switch {
		case err != nil:
			s.observeFailed(string(apperrors.CodeOf(err)), elapsed)
		case created:
			s.observePlaced(elapsed)
		}
	}()

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		return nil, false, apperrors.New(apperrors.CodeValidation, "Idempotency key is too long")
	}
	if idempotencyKey != "" {
		existing, err := s.findByKey(ctx, userID, idempotencyKey)
		if err != nil || existing != nil {
			return existing, false, err
		}
	}

	for attempt := 1; ; attempt++ {
		order, err = s.transfer(ctx, userID, idempotencyKey)
		if !errors.Is(err, errCartChanged) || attempt == maxTransferAttempts {
			break
		}
	}
	if err != nil {
		if idempotencyKey != "" && errors.Is(err, repositories.ErrDuplicate) {
			existing, findErr := s.findByKey(ctx, userID, idempotencyKey)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		if apperrors.As(err) == nil {
			err = apperrors.Internal(err, "failed to place order")
		}
		return nil, false, err
	}

	s.publish(ctx, order)
	return order, true, nil
}

func (s *OrderService) transfer(ctx context.Context, userID, idempotencyKey string) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		products := s.products.WithTx(tx)

		lines, err := carts.ListLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperrors.New(apperrors.CodeValidation, "Cart is empty")
		}

		requested := productIDs(lines)
		locked, err := products.LockByIDs(ctx, requested)
		if err != nil {
			return err
		}
		// Re-read after the locks are held so a checkout that committed meanwhile is seen.
		lines, err = carts.ListLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperrors.New(apperrors.CodeValidation, "Cart is empty")
		}
		// Locking the new rows now would break the global id order, so start over.
		if addedSince(lines, requested) {
			return errCartChanged
		}
		byID := make(map[string]*models.Product, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}

		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok {
				return apperrors.New(apperrors.CodeNotFound, "Product not found")
			}
			if product.StockQuantity < line.Quantity {
				return insufficientStock(product, line.Quantity)
			}
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			})
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		tax := subtotal.Mul(s.taxRate).Round(2)
		order = &models.Order{
			UserID:      userID,
			Subtotal:    subtotal,
			Tax:         tax,
			TotalAmount: subtotal.Add(tax),
			Status:      models.OrderStatusConfirmed,
			Items:       items,
			CreatedAt:   s.now().UTC(),
		}
		if idempotencyKey != "" {
			order.IdempotencyKey = &idempotencyKey
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			if err := products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repositories.ErrStockConflict) {
					return insufficientStock(byID[item.ProductID], item.Quantity)
				}
				return err
			}
		}

		return carts.Clear(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns one of the user's orders.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "Order not found")
		}
		return nil, apperrors.Internal(err, "failed to load order")
	}
	return order, nil
}

func (s *OrderService) findByKey(ctx context.Context, userID, key string) (*models.Order, error) {
	order, err := s.orders.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal(err, "failed to look up order")
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := rabbitmq.OrderPlacedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		PlacedAt:    order.CreatedAt,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, rabbitmq.OrderPlacedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := s.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error(s.log.WithField(ctx, "order_id", order.ID), "failed to publish order event", err)
	}
}

func (s *OrderService) observePlaced(elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObservePlaced(elapsed)
	}
}

func (s *OrderService) observeFailed(reason string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveFailed(reason, elapsed)
	}
}

func productIDs(lines []models.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func addedSince(lines []models.CartLine, requested []string) bool {
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		seen[id] = struct{}{}
	}
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; !ok {
			return true
		}
	}
	return false
}
