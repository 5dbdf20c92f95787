package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeApp injects a jwt.Token into locals when X-User-ID is provided so the
// tests do not need the full jwtware middleware.
func makeApp(h *Handler) *fiber.App {
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				claims := jwt.MapClaims{"user_id": float64(id), "role": c.Get("X-User-Role")}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	app.Get("/supplier-only", RequireRole(RoleSupplier), func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*httpResult, error) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := app.Test(req)
	if err != nil {
		return nil, err
	}
	b, _ := io.ReadAll(res.Body)
	return &httpResult{status: res.StatusCode, body: string(b)}, nil
}

type httpResult struct {
	status int
	body   string
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil), "test-secret")
	app := makeApp(NewHandler(svc))

	res, err := doRequest(t, app, "POST", "/api/v1/auth/register",
		`{"email":"Ravi@Example.com","password":"secret1","name":"Ravi","role":"vendor"}`, nil)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, res.status, res.body)
	assert.NotContains(t, res.body, "password")
	assert.Contains(t, res.body, "ravi@example.com")

	res, err = doRequest(t, app, "POST", "/api/v1/auth/register",
		`{"email":"ravi@example.com","password":"secret1","name":"Ravi","role":"vendor"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, res.status)

	res, err = doRequest(t, app, "POST", "/api/v1/auth/login", `{"email":"ravi@example.com","password":"wrong"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res, err = doRequest(t, app, "POST", "/api/v1/auth/login", `{"email":"ravi@example.com","password":"secret1"}`, nil)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.status, res.body)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.body), &body))

	parsed, err := jwt.Parse(body.Token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "vendor", claims["role"])
	assert.EqualValues(t, 1, claims["user_id"])
}

func TestRegister_Validation(t *testing.T) {
	app := makeApp(NewHandler(NewService(NewInMemoryRepository(nil), "s")))

	res, err := doRequest(t, app, "POST", "/api/v1/auth/register",
		`{"email":"not-an-email","password":"123","role":"admin"}`, nil)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Contains(t, res.body, `"email"`)
	assert.Contains(t, res.body, `"password"`)
	assert.Contains(t, res.body, `"name"`)
	assert.Contains(t, res.body, `"role"`)

	// suppliers need somewhere to deliver from
	res, err = doRequest(t, app, "POST", "/api/v1/auth/register",
		`{"email":"s@example.com","password":"secret1","name":"Supplier","role":"supplier"}`, nil)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Contains(t, res.body, "location")

	res, err = doRequest(t, app, "POST", "/api/v1/auth/register",
		`{"email":"s@example.com","password":"secret1","name":"Supplier","role":"supplier","location":{"pincode":"012345"}}`, nil)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Contains(t, res.body, "location.pincode")
}

func TestProfileRoute(t *testing.T) {
	repo := NewInMemoryRepository([]User{{ID: 7, Email: "j@example.com", Password: "$2a$hash", Name: "Jenny", Role: RoleVendor}})
	app := makeApp(NewHandler(NewService(repo, "s")))

	res, err := doRequest(t, app, "GET", "/api/v1/profile", "", nil)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res, err = doRequest(t, app, "GET", "/api/v1/profile", "", map[string]string{"X-User-ID": "7"})
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Contains(t, res.body, "j@example.com")
	assert.NotContains(t, res.body, "password")

	for _, method := range []string{"PUT", "PATCH"} {
		res, err = doRequest(t, app, method, "/api/v1/profile",
			`{"name":"Jenny K","location":{"latitude":19.07,"longitude":72.87,"city":"Mumbai","pincode":"400001"}}`,
			map[string]string{"X-User-ID": "7"})
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, res.status, res.body)
	}

	u, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Jenny K", u.Name)
	assert.Equal(t, "Mumbai", u.Location.City)

	res, err = doRequest(t, app, "PATCH", "/api/v1/profile", `{"location":{"pincode":"99"}}`, map[string]string{"X-User-ID": "7"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
}

func TestRequireRole(t *testing.T) {
	app := makeApp(NewHandler(NewService(NewInMemoryRepository(nil), "s")))

	res, err := doRequest(t, app, "GET", "/supplier-only", "", map[string]string{"X-User-ID": "1", "X-User-Role": "vendor"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res, err = doRequest(t, app, "GET", "/supplier-only", "", map[string]string{"X-User-ID": "1", "X-User-Role": "supplier"})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.status)

	res, err = doRequest(t, app, "GET", "/supplier-only", "", nil)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestClaimInt(t *testing.T) {
	for _, v := range []any{float64(3), 3, int64(3), "3"} {
		n, ok := claimInt(v)
		assert.True(t, ok)
		assert.Equal(t, 3, n)
	}
	_, ok := claimInt(nil)
	assert.False(t, ok)
}
