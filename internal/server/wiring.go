package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"warung/internal/config"
	"warung/internal/handlers"
	"warung/internal/repositories"
	"warung/internal/services"
	"warung/pkg/database"
	"warung/pkg/logger"
	"warung/pkg/metrics"
)

// Options carries the optional collaborators of Assemble.
type Options struct {
	Logger    *logger.Logger
	Revoker   services.Revoker
	Publisher services.OrderPublisher
	Registry  *prometheus.Registry
	// Extra health checks in addition to the database.
	Health       map[string]handlers.Pinger
	PasswordCost int
}

// Assemble builds the repositories and services on top of db.
func Assemble(cfg *config.Config, db *database.Client, opts Options) Deps {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = services.PasswordCost
	}

	users := repositories.NewGORMUserRepository(db.DB())
	products := repositories.NewGORMProductRepository(db.DB())
	carts := repositories.NewGORMCartRepository(db.DB())
	orders := repositories.NewGORMOrderRepository(db.DB())

	var tokenOpts []services.TokenOption
	if opts.Revoker != nil {
		tokenOpts = append(tokenOpts, services.WithRevoker(opts.Revoker))
	}
	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn, tokenOpts...)
	credentials := services.NewCredentialStore(users, cost)

	orderOpts := []services.OrderServiceOption{
		services.WithTaxRate(cfg.Order.TaxRate),
		services.WithOrderLogger(logg),
	}
	if opts.Publisher != nil {
		orderOpts = append(orderOpts, services.WithPublisher(opts.Publisher))
	}
	deps := Deps{
		Config:   cfg,
		Logger:   logg,
		Tokens:   tokens,
		Auth:     services.NewAuthService(credentials, tokens, cfg.Auth.AdminSetupCode),
		Carts:    services.NewCartService(db, carts, products),
		Products: services.NewProductService(db, products),
		Health:   map[string]handlers.Pinger{"database": db},
	}
	if opts.Registry != nil {
		orderOpts = append(orderOpts, services.WithCheckoutRecorder(metrics.NewCheckoutMetrics(opts.Registry)))
		deps.Gatherer = opts.Registry
	}
	deps.Orders = services.NewOrderService(db, carts, products, orders, orderOpts...)
	for name, p := range opts.Health {
		deps.Health[name] = p
	}
	return deps
}
