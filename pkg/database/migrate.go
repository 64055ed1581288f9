package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate applies the embedded goose migrations. Only postgres is supported.
func (c *Client) Migrate(ctx context.Context) error {
	if c.driver != "postgres" {
		return fmt.Errorf("goose migrations require postgres, got %q", c.driver)
	}

	sqlDB, err := c.conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db handle: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
