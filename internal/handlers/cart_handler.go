package handlers

import (
	"github.com/gofiber/fiber/v2"

	"warung/internal/middleware"
	"warung/internal/services"
	"warung/pkg/apperrors"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	cartService *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// AddItemRequest is the body of POST /cart/items. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// UpdateItemRequest is the body of PUT /cart/items/:id.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// RegisterRoutes registers the cart routes. Every route requires authentication.
func (h *CartHandler) RegisterRoutes(router fiber.Router, guards Guards) {
	cartRoutes := router.Group("/cart", guarded(guards.Auth)...)
	cartRoutes.Get("", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Put("/items/:id", h.HandleUpdateItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
	cartRoutes.Delete("", h.HandleClearCart)
}

// HandleGetCart returns the caller's cart.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	view, err := h.cartService.GetCart(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{
		"items":      view.Items,
		"total":      view.Total,
		"item_count": view.ItemCount,
	})
}

// HandleAddItem adds a product to the caller's cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	userID := currentUserID(c)
	item, err := h.cartService.Add(c.UserContext(), userID, req.ProductID, quantity)
	if err != nil {
		return err
	}
	return h.respondWithCart(c, "Item added to cart", fiber.Map{"cart_item": item})
}

// HandleUpdateItem sets the quantity of a cart line. Zero or less removes it.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if req.Quantity == nil {
		return apperrors.New(apperrors.CodeValidation, "Quantity is required")
	}

	item, err := h.cartService.SetQuantity(c.UserContext(), currentUserID(c), c.Params("id"), *req.Quantity)
	if err != nil {
		return err
	}
	message := "Cart item updated"
	if item == nil {
		message = "Item removed from cart"
	}
	return h.respondWithCart(c, message, fiber.Map{"cart_item": item})
}

// HandleRemoveItem removes a product from the caller's cart.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.cartService.Remove(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
		return err
	}
	return h.respondWithCart(c, "Item removed from cart", nil)
}

// HandleClearCart empties the caller's cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.cartService.Clear(c.UserContext(), currentUserID(c)); err != nil {
		return err
	}
	return h.respondWithCart(c, "Cart cleared", nil)
}

func (h *CartHandler) respondWithCart(c *fiber.Ctx, message string, fields fiber.Map) error {
	view, err := h.cartService.GetCart(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	if fields == nil {
		fields = fiber.Map{}
	}
	fields["cart"] = view
	return ok(c, fiber.StatusOK, message, fields)
}

func currentUserID(c *fiber.Ctx) string {
	if identity := middleware.IdentityFrom(c); identity != nil {
		return identity.UserID
	}
	return ""
}
