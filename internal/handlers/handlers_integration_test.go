package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"warung/internal/config"
	"warung/internal/repositories"
	"warung/internal/server"
	"warung/internal/testutil"
)

const adminSetupCode = "open-sesame"

// TestMain encodes amounts the way the binary does.
func TestMain(m *testing.M) {
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *memoryRevoker) RevokeToken(_ context.Context, tokenID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = true
	return nil
}

func (r *memoryRevoker) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[tokenID], nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: config.EnvDevelopment, RequestTimeout: 10 * time.Second},
		JWT: config.JWTConfig{
			Secret:    "integration-test-secret",
			Issuer:    "warung",
			ExpiresIn: time.Hour,
		},
		Cookie: config.CookieConfig{Name: "token", SameSite: "Lax"},
		Order:  config.OrderConfig{TaxRate: decimal.Zero},
		Auth:   config.AuthConfig{AdminSetupCode: adminSetupCode},
	}
}

// setupApp builds the full HTTP surface over a fresh sqlite database.
func setupApp(t *testing.T, mutate ...func(*config.Config)) *fiber.App {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	db := testutil.OpenSQLite(t, repositories.Models()...)
	deps := server.Assemble(cfg, db, server.Options{
		Revoker:      &memoryRevoker{revoked: map[string]bool{}},
		Registry:     prometheus.NewRegistry(),
		PasswordCost: bcrypt.MinCost,
	})
	return server.New(deps)
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, token string, headers ...string) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func signup(t *testing.T, app *fiber.App, username, email, password string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/auth/signup", map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"confirm_password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	return resp.body["token"].(string)
}

func setupAdmin(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/auth/setup-initial-admin", map[string]string{
		"username":         "root",
		"email":            "root@warung.test",
		"password":         "Sup3rSecret",
		"confirm_password": "Sup3rSecret",
		"setup_code":       adminSetupCode,
	}, "")
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	return resp.body["token"].(string)
}

func createProduct(t *testing.T, app *fiber.App, adminToken, name string, price float64, stock int) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/products", map[string]any{
		"name":           name,
		"description":    "test item",
		"price":          price,
		"stock_quantity": stock,
	}, adminToken)
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	return resp.body["product"].(map[string]any)["id"].(string)
}

func getStock(t *testing.T, app *fiber.App, productID string) float64 {
	t.Helper()
	resp := doJSON(t, app, http.MethodGet, "/api/products/"+productID, nil, "")
	require.Equal(t, http.StatusOK, resp.status)
	return resp.body["product"].(map[string]any)["stock_quantity"].(float64)
}

func TestSignupLoginCartOrderFlow(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)
	productID := createProduct(t, app, admin, "Nasi Goreng", 12.5, 10)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/signup", map[string]string{
		"username":         "Bob99",
		"email":            "bob@x.com",
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	}, "")
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	assert.Equal(t, true, resp.body["success"])
	assert.Equal(t, "User registered successfully", resp.body["message"])
	user := resp.body["user"].(map[string]any)
	assert.Equal(t, "Bob99", user["username"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "bob@x.com",
		"password":   "Secret1!",
	}, "")
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	token := resp.body["token"].(string)
	require.NotEmpty(t, token)

	resp = doJSON(t, app, http.MethodGet, "/api/cart", nil, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, resp.body["items"])
	assert.EqualValues(t, 0, resp.body["total"])

	resp = doJSON(t, app, http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   2,
	}, token)
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	cart := resp.body["cart"].(map[string]any)
	assert.EqualValues(t, 25, cart["total"])
	assert.EqualValues(t, 1, cart["item_count"])

	resp = doJSON(t, app, http.MethodPost, "/api/orders", nil, token)
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	assert.NotEmpty(t, resp.body["order_id"])
	assert.EqualValues(t, 25, resp.body["total_amount"])
	items := resp.body["order"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].(map[string]any)["quantity"])

	assert.EqualValues(t, 8, getStock(t, app, productID))

	resp = doJSON(t, app, http.MethodGet, "/api/cart", nil, token)
	assert.Empty(t, resp.body["items"])

	resp = doJSON(t, app, http.MethodGet, "/api/orders", nil, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["orders"], 1)
}

func TestSignupValidation(t *testing.T) {
	app := setupApp(t)
	signup(t, app, "alice", "alice@x.com", "secret12")

	cases := []struct {
		name    string
		payload map[string]string
		status  int
		message string
	}{
		{
			name:    "password mismatch",
			payload: map[string]string{"username": "carol", "email": "carol@x.com", "password": "secret12", "confirm_password": "secret13"},
			status:  http.StatusBadRequest,
			message: "Passwords do not match",
		},
		{
			name:    "duplicate username ignores case",
			payload: map[string]string{"username": "ALICE", "email": "other@x.com", "password": "secret12", "confirm_password": "secret12"},
			status:  http.StatusConflict,
			message: "Username already exists",
		},
		{
			name:    "duplicate email ignores case",
			payload: map[string]string{"username": "alice2", "email": "Alice@X.com", "password": "secret12", "confirm_password": "secret12"},
			status:  http.StatusConflict,
			message: "Email already exists",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/api/auth/signup", tc.payload, "")
			assert.Equal(t, tc.status, resp.status)
			assert.Equal(t, false, resp.body["success"])
			assert.Equal(t, tc.message, resp.body["message"])
		})
	}

	resp := doJSON(t, app, http.MethodPost, "/api/auth/signup", map[string]string{"username": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_ERROR", resp.body["code"])
	assert.NotEmpty(t, resp.body["details"])
}

func TestLoginDoesNotRevealWhichFieldFailed(t *testing.T) {
	app := setupApp(t)
	signup(t, app, "alice", "alice@x.com", "secret12")

	wrongPassword := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "alice",
		"password":   "wrong-password",
	}, "")
	unknownUser := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "nobody@x.com",
		"password":   "secret12",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.status)
	assert.Equal(t, wrongPassword.status, unknownUser.status)
	assert.Equal(t, wrongPassword.body, unknownUser.body)
	assert.Equal(t, "Invalid credentials", wrongPassword.body["message"])
}

func TestSessionCookieAuthenticates(t *testing.T) {
	app := setupApp(t)
	signup(t, app, "alice", "alice@x.com", "secret12")

	resp := doJSON(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusOK, resp.status)

	var session *http.Cookie
	for _, c := range resp.cookies {
		if c.Name == "token" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, "/", session.Path)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: session.Value})
	raw, err := app.Test(req, -1)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusOK, raw.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/api/cart", "/api/orders", "/api/auth/me"} {
		resp := doJSON(t, app, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.status, path)
		assert.Equal(t, false, resp.body["success"])
	}

	resp := doJSON(t, app, http.MethodGet, "/api/cart", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	app := setupApp(t)
	token := signup(t, app, "alice", "alice@x.com", "secret12")

	resp := doJSON(t, app, http.MethodPost, "/api/products", map[string]any{
		"name":           "Es Teh",
		"price":          3,
		"stock_quantity": 5,
	}, token)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = doJSON(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Es Teh"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestInitialAdminSetupOnlyOnce(t *testing.T) {
	app := setupApp(t)
	setupAdmin(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/auth/setup-initial-admin", map[string]string{
		"username":         "second",
		"email":            "second@warung.test",
		"password":         "Sup3rSecret",
		"confirm_password": "Sup3rSecret",
		"setup_code":       adminSetupCode,
	}, "")
	assert.Equal(t, http.StatusForbidden, resp.status)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := setupApp(t)
	token := signup(t, app, "alice", "alice@x.com", "secret12")

	resp := doJSON(t, app, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.status)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.status)

	resp = doJSON(t, app, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestAddToCartBeyondStock(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)
	productID := createProduct(t, app, admin, "Sate Ayam", 20, 3)
	token := signup(t, app, "alice", "alice@x.com", "secret12")

	resp := doJSON(t, app, http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   4,
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.body["code"])
	assert.Equal(t, "Only 3 units of Sate Ayam available in stock", resp.body["message"])
	details := resp.body["details"].(map[string]any)
	assert.EqualValues(t, 3, details["available"])
	assert.EqualValues(t, 4, details["requested"])

	resp = doJSON(t, app, http.MethodPost, "/api/cart/items", map[string]any{"product_id": productID}, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 1, resp.body["cart_item"].(map[string]any)["quantity"])

	resp = doJSON(t, app, http.MethodPut, "/api/cart/items/"+productID, map[string]any{"quantity": 0}, token)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, resp.body["cart"].(map[string]any)["items"])

	resp = doJSON(t, app, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "missing"}, token)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)
	productID := createProduct(t, app, admin, "Mie Ayam", 15, 5)
	token := signup(t, app, "alice", "alice@x.com", "secret12")

	resp := doJSON(t, app, http.MethodPost, "/api/cart/items", map[string]any{"product_id": productID, "quantity": 2}, token)
	require.Equal(t, http.StatusOK, resp.status)

	first := doJSON(t, app, http.MethodPost, "/api/orders", nil, token, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, first.status, first.body)

	second := doJSON(t, app, http.MethodPost, "/api/orders", nil, token, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusOK, second.status, second.body)
	assert.Equal(t, first.body["order_id"], second.body["order_id"])
	assert.EqualValues(t, 3, getStock(t, app, productID))

	other := signup(t, app, "bob", "bob@x.com", "secret12")
	resp = doJSON(t, app, http.MethodGet, "/api/orders/"+first.body["order_id"].(string), nil, other)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = doJSON(t, app, http.MethodPost, "/api/orders", nil, other)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestCatalogFiltersArePublic(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)

	resp := doJSON(t, app, http.MethodPost, "/api/products", map[string]any{
		"name":           "Kopi Susu",
		"category":       "drinks",
		"price":          "18000.00",
		"stock_quantity": 20,
	}, admin)
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	createProduct(t, app, admin, "Nasi Uduk", 12000, 5)

	resp = doJSON(t, app, http.MethodGet, "/api/products?category=drinks", nil, "")
	require.Equal(t, http.StatusOK, resp.status)
	products := resp.body["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "Kopi Susu", products[0].(map[string]any)["name"])

	resp = doJSON(t, app, http.MethodGet, "/api/products?search=uduk", nil, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["products"], 1)
}

func TestCategoriesListInStockOnly(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)

	for _, p := range []map[string]any{
		{"name": "Kopi Susu", "category": "drinks", "price": 18000, "stock_quantity": 20},
		{"name": "Es Jeruk", "category": "drinks", "price": 8000, "stock_quantity": 4},
		{"name": "Sate Ayam", "category": "grill", "price": 30000, "stock_quantity": 0},
		{"name": "Nasi Uduk", "category": "mains", "price": 12000, "stock_quantity": 5},
	} {
		resp := doJSON(t, app, http.MethodPost, "/api/products", p, admin)
		require.Equal(t, http.StatusCreated, resp.status, resp.body)
	}

	resp := doJSON(t, app, http.MethodGet, "/api/products/categories", nil, "")
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	assert.Equal(t, true, resp.body["success"])
	assert.Equal(t, []any{"drinks", "mains"}, resp.body["categories"])
}

func TestUpdateStockIsAdminOnly(t *testing.T) {
	app := setupApp(t)
	admin := setupAdmin(t, app)
	customer := signup(t, app, "budi", "budi@warung.test", "secret1")
	productID := createProduct(t, app, admin, "Soto Betawi", 27000, 3)
	path := "/api/products/" + productID + "/stock"

	resp := doJSON(t, app, http.MethodPatch, path, map[string]any{"stock_quantity": 9}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	resp = doJSON(t, app, http.MethodPatch, path, map[string]any{"stock_quantity": 9}, customer)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = doJSON(t, app, http.MethodPatch, path, map[string]any{"stock_quantity": 9}, admin)
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	assert.Equal(t, "Product stock updated successfully", resp.body["message"])
	assert.EqualValues(t, 9, resp.body["product"].(map[string]any)["stock_quantity"])
	assert.EqualValues(t, 9, getStock(t, app, productID))

	resp = doJSON(t, app, http.MethodPatch, path, map[string]any{}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "Stock quantity is required", resp.body["message"])

	resp = doJSON(t, app, http.MethodPatch, path, map[string]any{"stock_quantity": -2}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.EqualValues(t, 9, getStock(t, app, productID))

	resp = doJSON(t, app, http.MethodPatch, "/api/products/missing/stock", map[string]any{"stock_quantity": 1}, admin)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "Product not found", resp.body["message"])
}

func TestHealthMetricsAndUnknownRoute(t *testing.T) {
	app := setupApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "healthy", resp.body["status"])
	assert.Equal(t, "ok", resp.body["dependencies"].(map[string]any)["database"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	raw, err := app.Test(req, -1)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusOK, raw.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, false, resp.body["success"])
}

func TestAuthThrottle(t *testing.T) {
	app := setupApp(t, func(cfg *config.Config) {
		cfg.Auth.RateLimitMax = 2
		cfg.Auth.RateLimitWindow = time.Minute
	})

	payload := map[string]string{"identifier": "nobody", "password": "whatever"}
	for i := 0; i < 2; i++ {
		resp := doJSON(t, app, http.MethodPost, "/api/auth/login", payload, "")
		assert.Equal(t, http.StatusUnauthorized, resp.status)
	}
	resp := doJSON(t, app, http.MethodPost, "/api/auth/login", payload, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
	assert.Equal(t, "RATE_LIMITED", resp.body["code"])
}
