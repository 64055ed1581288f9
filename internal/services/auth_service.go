package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"warung/internal/models"
	"warung/pkg/apperrors"
)

var (
	errInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "Invalid credentials")
	errAdminExists        = apperrors.New(apperrors.CodeForbidden, "An admin account already exists")
)

// SignupInput is the body of a signup request.
type SignupInput struct {
	Username        string `json:"username" validate:"required,min=3,max=50,username"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginInput is the body of a login request. Identifier falls back to Email, then Username.
type LoginInput struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// SetupAdminInput is the body of the initial admin setup request.
type SetupAdminInput struct {
	SignupInput
	SetupCode string `json:"setup_code" validate:"required"`
}

// AuthResult is returned after a successful signup or login.
type AuthResult struct {
	User      models.PublicUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// AuthService orchestrates signup, login and logout.
type AuthService struct {
	credentials    *CredentialStore
	tokens         *TokenService
	validate       *validator.Validate
	adminSetupCode string
}

// NewAuthService creates a new AuthService. An empty adminSetupCode disables initial admin setup.
func NewAuthService(credentials *CredentialStore, tokens *TokenService, adminSetupCode string) *AuthService {
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		validate:       newValidator(),
		adminSetupCode: adminSetupCode,
	}
}

// Signup validates the input, creates a regular user and issues a token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	user, err := s.credentials.CreateUser(ctx, NewUser{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates by username or email. Unknown identifiers and wrong passwords
// return the same InvalidCredentials error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(in.Email)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(in.Username)
	}
	if identifier == "" || in.Password == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "Identifier and password are required")
	}

	user, err := s.credentials.FindByIdentifier(ctx, identifier)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			s.credentials.VerifyPassword(in.Password, "")
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !s.credentials.VerifyPassword(in.Password, user.PasswordHash) {
		return nil, errInvalidCredentials
	}
	return s.issue(user)
}

// Logout revokes the caller's token when revocation is configured. The transport clears the cookie.
func (s *AuthService) Logout(ctx context.Context, identity *Identity) error {
	return s.tokens.Revoke(ctx, identity)
}

// Profile returns the safe fields of the user behind identity.
func (s *AuthService) Profile(ctx context.Context, identity *Identity) (*models.PublicUser, error) {
	if identity == nil {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	user, err := s.credentials.FindByID(ctx, identity.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthenticated, "user no longer exists")
		}
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// SetupInitialAdmin creates the first administrator when the setup code matches and no admin exists.
func (s *AuthService) SetupInitialAdmin(ctx context.Context, in SetupAdminInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if s.adminSetupCode == "" ||
		subtle.ConstantTimeCompare([]byte(in.SetupCode), []byte(s.adminSetupCode)) != 1 {
		return nil, apperrors.New(apperrors.CodeForbidden, "Invalid setup code")
	}

	admins, err := s.credentials.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if admins > 0 {
		return nil, errAdminExists
	}

	user, err := s.credentials.CreateUser(ctx, NewUser{
		Username:     in.Username,
		Email:        in.Email,
		Password:     in.Password,
		Role:         models.RoleAdmin,
		IsSuperAdmin: true,
	})
	if err != nil {
		// A concurrent setup that won the single super admin slot surfaces as a duplicate.
		if apperrors.Is(err, apperrors.CodeDuplicateIdentity) {
			if admins, countErr := s.credentials.CountAdmins(ctx); countErr == nil && admins > 0 {
				return nil, errAdminExists
			}
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to issue token")
	}
	return &AuthResult{
		User:      user.Public(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
