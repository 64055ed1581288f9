package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"warung/internal/middleware"
	"warung/internal/services"
)

// CookieSettings controls the session cookie written on login and signup.
type CookieSettings struct {
	Name     string
	Secure   bool
	SameSite string
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	cookie      CookieSettings
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, cookie CookieSettings) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, guards Guards) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/signup", chain(h.HandleSignup, guards.Throttle)...)
	authRoutes.Post("/login", chain(h.HandleLogin, guards.Throttle)...)
	authRoutes.Post("/logout", chain(h.HandleLogout, guards.OptionalAuth)...)
	authRoutes.Get("/me", chain(h.HandleProfile, guards.Auth)...)
	authRoutes.Post("/setup-initial-admin", chain(h.HandleSetupInitialAdmin, guards.Throttle)...)
}

// HandleSignup registers a new user and starts a session.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req services.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	result, err := h.authService.Signup(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	return ok(c, fiber.StatusCreated, "User registered successfully", fiber.Map{
		"user":  result.User,
		"token": result.Token,
	})
}

// HandleLogin authenticates by username or email and starts a session.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	result, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	return ok(c, fiber.StatusOK, "Login successful", fiber.Map{
		"user":  result.User,
		"token": result.Token,
	})
}

// HandleLogout revokes the presented token when possible and clears the session cookie.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if identity := middleware.IdentityFrom(c); identity != nil {
		if err := h.authService.Logout(c.UserContext(), identity); err != nil {
			return err
		}
	}
	h.clearSessionCookie(c)
	return ok(c, fiber.StatusOK, "Logged out successfully", nil)
}

// HandleProfile returns the authenticated user.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	user, err := h.authService.Profile(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

// HandleSetupInitialAdmin creates the first administrator account.
func (h *AuthHandler) HandleSetupInitialAdmin(c *fiber.Ctx) error {
	var req services.SetupAdminInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	result, err := h.authService.SetupInitialAdmin(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	return ok(c, fiber.StatusCreated, "Admin account created successfully", fiber.Map{
		"user":  result.User,
		"token": result.Token,
	})
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}
