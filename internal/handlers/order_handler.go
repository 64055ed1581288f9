package handlers

import (
	"github.com/gofiber/fiber/v2"

	"warung/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests for checkout and order history.
type OrderHandler struct {
	orderService *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// RegisterRoutes registers the order routes. Every route requires authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, guards Guards) {
	orderRoutes := router.Group("/orders", guarded(guards.Auth)...)
	orderRoutes.Post("", h.HandlePlaceOrder)
	orderRoutes.Get("", h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
}

// HandlePlaceOrder converts the caller's cart into an order. A repeated Idempotency-Key
// returns the original order with 200 instead of 201.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	order, created, err := h.orderService.PlaceOrder(c.UserContext(), currentUserID(c), c.Get(idempotencyHeader))
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	message := "Order placed successfully"
	if !created {
		status = fiber.StatusOK
		message = "Order already placed"
	}
	return ok(c, status, message, fiber.Map{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount,
		"order":        order,
	})
}

// HandleListOrders returns the caller's orders, newest first.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.orderService.ListOrders(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"orders": orders})
}

// HandleGetOrder returns one of the caller's orders.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.orderService.GetOrder(c.UserContext(), currentUserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"order": order})
}
