package handlers

import (
	"github.com/gofiber/fiber/v2"

	"warung/internal/repositories"
	"warung/internal/services"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	productService *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// RegisterRoutes registers the catalog routes. Reads are public, writes need an admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, guards Guards) {
	productRoutes := router.Group("/products")
	productRoutes.Get("", h.HandleGetAllProducts)
	productRoutes.Get("/categories", h.HandleGetCategories)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("", chain(h.HandleCreateProduct, guards.Auth, guards.Admin)...)
	productRoutes.Put("/:id", chain(h.HandleUpdateProduct, guards.Auth, guards.Admin)...)
	productRoutes.Delete("/:id", chain(h.HandleDeleteProduct, guards.Auth, guards.Admin)...)
	productRoutes.Patch("/:id/stock", chain(h.HandleUpdateStock, guards.Auth, guards.Admin)...)
}

// HandleGetAllProducts lists products, optionally filtered by ?category= and ?search=.
func (h *ProductHandler) HandleGetAllProducts(c *fiber.Ctx) error {
	products, err := h.productService.GetAllProducts(c.UserContext(), repositories.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"products": products})
}

// HandleGetCategories lists the categories that have products in stock.
func (h *ProductHandler) HandleGetCategories(c *fiber.Ctx) error {
	categories, err := h.productService.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"categories": categories})
}

// HandleGetProductByID returns a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.productService.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"product": product})
}

// HandleCreateProduct adds a product to the catalog.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	product, err := h.productService.CreateProduct(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Product created successfully", fiber.Map{"product": product})
}

// HandleUpdateProduct replaces a product's details.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req services.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	product, err := h.productService.UpdateProduct(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Product updated successfully", fiber.Map{"product": product})
}

// HandleDeleteProduct removes a product from the catalog.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.productService.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Product deleted successfully", nil)
}

// HandleUpdateStock overwrites a product's stock level.
func (h *ProductHandler) HandleUpdateStock(c *fiber.Ctx) error {
	var req services.StockInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	product, err := h.productService.UpdateStock(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Product stock updated successfully", fiber.Map{"product": product})
}
