package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warung/internal/config"
	"warung/internal/handlers"
	"warung/internal/middleware"
	"warung/internal/models"
	"warung/internal/services"
	"warung/pkg/apperrors"
	"warung/pkg/logger"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Tokens   *services.TokenService
	Auth     *services.AuthService
	Carts    *services.CartService
	Orders   *services.OrderService
	Products *services.ProductService
	Health   map[string]handlers.Pinger
	Gatherer prometheus.Gatherer
}

// New builds the Fiber app and mounts every route under /api, plus /health and /metrics.
func New(deps Deps) *fiber.App {
	cfg := deps.Config
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "warung",
		ErrorHandler:          handlers.ErrorHandler(logg, !cfg.App.IsProduction()),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app.Use(middleware.RequestContext(logg, cfg.App.RequestTimeout))
	app.Use(middleware.Recover(logg))

	guards := handlers.Guards{
		Auth:         middleware.AuthRequired(deps.Tokens, cfg.Cookie.Name, logg),
		OptionalAuth: middleware.AuthOptional(deps.Tokens, cfg.Cookie.Name),
		Admin:        middleware.RequireRole(models.RoleAdmin),
		Throttle:     authLimiter(cfg.Auth),
	}

	api := app.Group("/api")
	handlers.NewAuthHandler(deps.Auth, handlers.CookieSettings{
		Name:     cfg.Cookie.Name,
		Secure:   cfg.Cookie.Secure,
		SameSite: sameSite(cfg.Cookie.SameSite),
	}).RegisterRoutes(api, guards)
	handlers.NewProductHandler(deps.Products).RegisterRoutes(api, guards)
	handlers.NewCartHandler(deps.Carts).RegisterRoutes(api, guards)
	handlers.NewOrderHandler(deps.Orders).RegisterRoutes(api, guards)

	handlers.NewHealthHandler(deps.Health).RegisterRoutes(app)
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.New(apperrors.CodeNotFound, "Route not found")
	})
	return app
}

// authLimiter throttles credential endpoints per client IP. A non-positive max disables it.
func authLimiter(cfg config.AuthConfig) fiber.Handler {
	if cfg.RateLimitMax <= 0 {
		return nil
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.New(apperrors.CodeRateLimited, "Too many requests, please try again later")
		},
	})
}

func sameSite(value string) string {
	if strings.EqualFold(value, fiber.CookieSameSiteStrictMode) {
		return fiber.CookieSameSiteStrictMode
	}
	return fiber.CookieSameSiteLaxMode
}
