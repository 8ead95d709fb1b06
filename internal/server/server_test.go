package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thishamdi/digital-store-api/internal/config"
	"github.com/thishamdi/digital-store-api/internal/db/dbtest"
	"github.com/thishamdi/digital-store-api/internal/mocks"
	"github.com/thishamdi/digital-store-api/internal/services/events"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t       *testing.T
	app     *fiber.App
	otps    []string
	cookies []*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t}

	m := new(mocks.MockMailer)
	m.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) { h.otps = append(h.otps, args.String(2)) })

	cfg := config.Config{
		AppEnv:               "test",
		JWTAccessSecret:      "access-secret",
		JWTRefreshSecret:     "refresh-secret",
		AccessTokenMin:       15,
		RefreshTokenMin:      60,
		CORSOrigin:           "http://localhost:3000",
		RequireVerifiedEmail: true,
		FrontendBaseURL:      "http://localhost:3000",
	}
	h.app, _ = New(Deps{Config: cfg, DB: dbtest.New(t), Publisher: events.Nop{}, Mailer: m})
	return h
}

// call sends a JSON request with the harness cookies and returns the
// decoded envelope.
func (h *harness) call(method, path string, body any) (int, envelope) {
	h.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		h.setCookie(c)
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (h *harness) setCookie(c *http.Cookie) {
	kept := h.cookies[:0]
	for _, old := range h.cookies {
		if old.Name != c.Name {
			kept = append(kept, old)
		}
	}
	h.cookies = kept
	if c.Value != "" && c.MaxAge >= 0 {
		h.cookies = append(h.cookies, c)
	}
}

func (h *harness) lastOTP() string {
	h.t.Helper()
	require.NotEmpty(h.t, h.otps)
	return h.otps[len(h.otps)-1]
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func (h *harness) registerVerifiedAdmin() {
	h.t.Helper()
	status, env := h.call(http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "storeadmin",
		"email":    "admin@shop.io",
		"password": "correct-horse",
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)

	status, env = h.call(http.MethodPost, "/api/v1/auth/send-verification", nil)
	require.Equal(h.t, http.StatusOK, status, env.Message)
	status, env = h.call(http.MethodPost, "/api/v1/auth/verify-email", fiber.Map{"otp": h.lastOTP()})
	require.Equal(h.t, http.StatusOK, status, env.Message)
}

func TestRegisterSetsSessionCookies(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"username":"storeadmin","email":"admin@shop.io","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	byName := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		byName[c.Name] = c
	}
	for name, maxAge := range map[string]int{"accessToken": 15 * 60, "refreshToken": 60 * 60} {
		c := byName[name]
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly, name)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite, name)
		assert.False(t, c.Secure, "only production cookies are Secure")
		assert.Equal(t, maxAge, c.MaxAge, name)
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	status, env := h.call(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = h.call(http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "storeadmin", "email": "admin@shop.io", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env = h.call(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[struct {
		User struct {
			Email           string `json:"email"`
			IsEmailVerified bool   `json:"isEmailVerified"`
		} `json:"user"`
	}](t, env)
	assert.Equal(t, "admin@shop.io", me.User.Email)
	assert.False(t, me.User.IsEmailVerified)
	assert.NotContains(t, string(env.Data), "password")

	// unverified admins cannot write
	status, env = h.call(http.MethodPost, "/api/v1/categories", fiber.Map{"name": "Streaming"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Please verify your email address", env.Message)

	status, _ = h.call(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = h.call(http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, h.cookies)

	status, env = h.call(http.MethodPost, "/api/v1/auth/login", fiber.Map{"email": "admin@shop.io", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, _ = h.call(http.MethodPost, "/api/v1/auth/login", fiber.Map{"email": "admin@shop.io", "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, status)
}

func TestForgotPasswordIsRateLimited(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		status, env := h.call(http.MethodPost, "/api/v1/auth/forgot-password", fiber.Map{"email": "nobody@shop.io"})
		require.Equal(t, http.StatusOK, status, env.Message)
		assert.True(t, env.Success)
	}
	status, env := h.call(http.MethodPost, "/api/v1/auth/forgot-password", fiber.Map{"email": "nobody@shop.io"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.False(t, env.Success)
}

func TestCatalogAndOrderFlow(t *testing.T) {
	h := newHarness(t)
	h.registerVerifiedAdmin()

	status, env := h.call(http.MethodPost, "/api/v1/categories", fiber.Map{"name": "Streaming Services"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	cat := decode[struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}](t, env)
	assert.Equal(t, "streaming-services", cat.Slug)

	status, _ = h.call(http.MethodPost, "/api/v1/categories", fiber.Map{"name": "Streaming Services"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = h.call(http.MethodPost, "/api/v1/products", fiber.Map{
		"title":       "Netflix Premium",
		"description": "4K, four screens",
		"categoryId":  cat.ID,
		"stock":       5,
		"status":      "active",
		"variants":    []fiber.Map{{"duration": "1 month", "price": 10}},
		"requiredCustomerData": []fiber.Map{
			{"fieldName": "email", "fieldType": "email"},
		},
		"pricing":        fiber.Map{"basePrice": 10},
		"digitalContent": fiber.Map{"type": "subscription", "platform": "Netflix"},
		"tags":           []string{"video"},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	product := decode[struct {
		ID       string `json:"id"`
		Slug     string `json:"slug"`
		Variants []struct {
			ID string `json:"id"`
		} `json:"variants"`
	}](t, env)
	require.Len(t, product.Variants, 1)

	status, env = h.call(http.MethodGet, "/api/v1/products?tag=video&platform=Netflix", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[struct {
		TotalItems int `json:"totalItems"`
	}](t, env)
	assert.Equal(t, 1, page.TotalItems)

	status, env = h.call(http.MethodGet, "/api/v1/products/filters?category="+cat.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"maxPrice":10`)

	status, env = h.call(http.MethodGet, "/api/v1/products/"+product.Slug, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"views":1`)

	// orders are public
	admin := h.cookies
	h.cookies = nil
	item := fiber.Map{"productId": product.ID, "variantId": product.Variants[0].ID, "quantity": 3}

	status, env = h.call(http.MethodPost, "/api/v1/orders", fiber.Map{"items": []fiber.Map{item}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email is required", env.Message)

	item["customerData"] = fiber.Map{"email": "buyer@mail.io", "note": "dropped"}
	status, env = h.call(http.MethodPost, "/api/v1/orders", fiber.Map{"items": []fiber.Map{item}})
	require.Equal(t, http.StatusCreated, status, env.Message)
	created := decode[struct {
		OrderCode   string  `json:"orderCode"`
		TotalAmount float64 `json:"totalAmount"`
	}](t, env)
	assert.Len(t, created.OrderCode, 8)
	assert.Equal(t, 30.0, created.TotalAmount)
	fields := decode[map[string]json.RawMessage](t, env)
	assert.Len(t, fields, 2, "only the code and total are returned")
	assert.Contains(t, fields, "orderCode")
	assert.Contains(t, fields, "totalAmount")

	status, env = h.call(http.MethodGet, "/api/v1/orders/"+created.OrderCode, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"pending"`)
	assert.Contains(t, string(env.Data), "buyer@mail.io")
	assert.NotContains(t, string(env.Data), "dropped")

	status, env = h.call(http.MethodPost, "/api/v1/orders", fiber.Map{"items": []fiber.Map{item}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Insufficient stock for Netflix Premium", env.Message)

	status, env = h.call(http.MethodGet, "/api/v1/orders/"+strings.ToLower(created.OrderCode), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), created.OrderCode)

	status, _ = h.call(http.MethodPatch, "/api/v1/orders/"+created.OrderCode, fiber.Map{"status": "completed"})
	assert.Equal(t, http.StatusUnauthorized, status)

	h.cookies = admin
	status, env = h.call(http.MethodPatch, "/api/v1/orders/"+created.OrderCode, fiber.Map{
		"status": "completed", "adminComments": "delivered",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	updated := decode[struct {
		Status        string `json:"status"`
		AdminComments string `json:"adminComments"`
		StatusHistory []struct {
			Status string `json:"status"`
		} `json:"statusHistory"`
	}](t, env)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, "delivered", updated.AdminComments)
	assert.Len(t, updated.StatusHistory, 2)

	status, _ = h.call(http.MethodPatch, "/api/v1/orders/"+created.OrderCode, fiber.Map{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.call(http.MethodGet, "/api/v1/orders/NOPE0000", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.call(http.MethodDelete, "/api/v1/products/"+product.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.call(http.MethodDelete, "/api/v1/products/"+product.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.call(http.MethodDelete, "/api/v1/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	status, env := h.call(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"database":"ok"`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "store_http_requests_total")
}

func TestWebsocketRouteNeedsHub(t *testing.T) {
	h := newHarness(t)
	status, _ := h.call(http.MethodGet, "/ws/orders", nil)
	assert.Equal(t, http.StatusNotFound, status, "no hub, no route")
}

func TestNormalizeOrigins(t *testing.T) {
	assert.Equal(t, "http://a.io,http://b.io", normalizeOrigins(" http://a.io , http://b.io,"))
	assert.Equal(t, "http://localhost:3000", normalizeOrigins(""))
}
