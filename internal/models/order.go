package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusConfirmed = "confirmed"

// OrderItem is a purchased line with the price captured at checkout.
type OrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
}

// Order is an immutable record of a completed checkout.
type Order struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string          `json:"user_id" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_orders_user_idempotency"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	Tax            decimal.Decimal `json:"tax" gorm:"type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Status         string          `json:"status" gorm:"type:varchar(20);not null"`
	IdempotencyKey *string         `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_orders_user_idempotency"`
	Items          []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time       `json:"created_at"`
}
