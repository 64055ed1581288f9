package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"warung/internal/models"
	"warung/internal/repositories"
	"warung/pkg/apperrors"
)

// PasswordCost is the bcrypt work factor used for new hashes.
const PasswordCost = 10

// NewUser carries the fields needed to create a user.
type NewUser struct {
	Username     string
	Email        string
	Password     string
	Role         string
	IsSuperAdmin bool
}

// CredentialStore persists users and checks their passwords.
type CredentialStore struct {
	users     repositories.UserRepository
	cost      int
	dummyHash []byte
}

// NewCredentialStore creates a CredentialStore hashing with cost.
func NewCredentialStore(users repositories.UserRepository, cost int) *CredentialStore {
	if cost < bcrypt.MinCost {
		cost = PasswordCost
	}
	// Compared against when an identifier matches nobody, so lookups take the same time either way.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("warung-timing-equaliser"), cost)
	return &CredentialStore{
		users:     users,
		cost:      cost,
		dummyHash: dummy,
	}
}

// CreateUser hashes the password and stores the user. Username and email are unique case-insensitively.
func (s *CredentialStore) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown role %q", role)
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if _, err := s.users.GetByUsername(ctx, normalizeIdentity(username)); err == nil {
		return nil, apperrors.New(apperrors.CodeDuplicateIdentity, "Username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Internal(err, "failed to check username")
	}
	if _, err := s.users.GetByEmail(ctx, normalizeIdentity(email)); err == nil {
		return nil, apperrors.New(apperrors.CodeDuplicateIdentity, "Email already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Internal(err, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.New(apperrors.CodeValidation, "Password is too long")
		}
		return nil, apperrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Username:           username,
		UsernameNormalized: normalizeIdentity(username),
		Email:              email,
		EmailNormalized:    normalizeIdentity(email),
		PasswordHash:       string(hash),
		Role:               role,
		IsSuperAdmin:       in.IsSuperAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeDuplicateIdentity, "Username or email already exists")
		}
		return nil, apperrors.Internal(err, "failed to create user")
	}
	return user, nil
}

// FindByIdentifier looks a user up by email when identifier contains '@', otherwise by username.
func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	normalized := normalizeIdentity(identifier)
	if normalized == "" {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(normalized, "@") {
		user, err = s.users.GetByEmail(ctx, normalized)
	} else {
		user, err = s.users.GetByUsername(ctx, normalized)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, apperrors.Internal(err, "failed to look up user")
	}
	return user, nil
}

// FindByID returns the user with id.
func (s *CredentialStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, apperrors.Internal(err, "failed to look up user")
	}
	return user, nil
}

// CountAdmins reports how many admin accounts exist.
func (s *CredentialStore) CountAdmins(ctx context.Context) (int64, error) {
	count, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return 0, apperrors.Internal(err, "failed to count admins")
	}
	return count, nil
}

// VerifyPassword reports whether plaintext matches hash. An empty hash is checked against
// a throwaway hash and always fails.
func (s *CredentialStore) VerifyPassword(plaintext, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
