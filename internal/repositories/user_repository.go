package repositories

import (
	"context"

	"warung/internal/models"
)

// UserRepository defines the interface for user data access.
// Lookups by username and email take the normalized (trimmed, lower-cased) value.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}
