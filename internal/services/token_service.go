package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warung/internal/models"
	"warung/pkg/apperrors"
)

// Claims is the JWT payload carried by session tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID    string
	Username  string
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// Revoker stores revoked token ids until they expire.
type Revoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
	revoker Revoker
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithRevoker enables server side revocation.
func WithRevoker(r Revoker) TokenOption {
	return func(s *TokenService) { s.revoker = r }
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret, issuer string, ttl time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for user and returns it with its expiry.
func (s *TokenService) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses token and returns the identity it carries. Any signature, format or
// expiry problem yields Unauthenticated.
func (s *TokenService) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "missing token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, err, "token expired")
		}
		return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, err, "invalid token")
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "invalid token")
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.Internal(err, "failed to check token revocation")
		}
		if revoked {
			return nil, apperrors.New(apperrors.CodeUnauthenticated, "token revoked")
		}
	}

	return &Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke denies identity's token for the rest of its lifetime. Without a revoker it does nothing.
func (s *TokenService) Revoke(ctx context.Context, identity *Identity) error {
	if s.revoker == nil || identity == nil || identity.TokenID == "" {
		return nil
	}
	ttl := identity.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, identity.TokenID, ttl); err != nil {
		return apperrors.Internal(err, "failed to revoke token")
	}
	return nil
}
