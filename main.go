package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"warung/internal/config"
	"warung/internal/handlers"
	"warung/internal/repositories"
	"warung/internal/server"
	"warung/pkg/database"
	"warung/pkg/logger"
	"warung/pkg/rabbitmq"
	"warung/pkg/redis"
)

func main() {
	// Amounts in HTTP responses are JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "warung",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

// run wires the dependencies and serves until SIGINT or SIGTERM. Deferred cleanups
// have all run by the time it returns.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	bootCtx, cancelBoot := context.WithTimeout(ctx, 30*time.Second)
	defer cancelBoot()

	db, err := database.Open(bootCtx, database.Config{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, logg)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := migrate(bootCtx, db); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := server.Options{
		Logger:   logg,
		Registry: registry,
		Health:   map[string]handlers.Pinger{},
	}

	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(bootCtx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		opts.Revoker = redisClient
		opts.Health["redis"] = redisClient
		logg.Info(ctx, "token revocation enabled")
	} else {
		logg.Warn(ctx, "REDIS_URL not set, logout cannot revoke tokens")
	}

	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL})
		if err != nil {
			return fmt.Errorf("rabbitmq connection failed: %w", err)
		}
		defer mqClient.Close()
		opts.Publisher = mqClient
		logg.Info(ctx, "order events enabled")
	}

	app := server.New(server.Assemble(cfg, db, opts))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	listenErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", cfg.App.Port), "starting server")
		listenErr <- app.Listen(cfg.App.Port)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-quit:
	}

	logg.Info(ctx, "shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logg.Info(ctx, "server gracefully stopped")
	return nil
}

// migrate runs the goose migrations on postgres and AutoMigrate on sqlite.
func migrate(ctx context.Context, db *database.Client) error {
	if db.Driver() == "postgres" {
		return db.Migrate(ctx)
	}
	return db.AutoMigrate(repositories.Models()...)
}
