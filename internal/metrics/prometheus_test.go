package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/v1/materials/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", Handler())

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/v1/materials/:id", "200"))

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/materials/7", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/v1/materials/:id", "200"))
	assert.Equal(t, before+1, after)

	res, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}

func TestRecordStock(t *testing.T) {
	RecordStock(42, 17)
	assert.Equal(t, 17.0, testutil.ToFloat64(StockLevel.WithLabelValues("42")))
}
