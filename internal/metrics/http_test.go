package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newMetricsRouter(t *testing.T) (*Provider, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider, _ := newTestBusinessMetrics(t, "api_test")

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "api_test"))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.POST("/v1/tenants/:tenant_id/messages", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
	})
	router.POST("/v1/tenants/:tenant_id/appointments/reserve", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"code": "SLOT_TAKEN"})
	})
	return provider, router
}

func serve(router *gin.Engine, method, path string) int {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("Success_LabelsByRoutePattern", func(t *testing.T) {
		provider, router := newMetricsRouter(t)

		assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/v1/tenants/t-1/messages"))
		assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/v1/tenants/t-2/messages"))
		assert.Equal(t, http.StatusConflict,
			serve(router, http.MethodPost, "/v1/tenants/t-1/appointments/reserve"))

		output := scrape(t, provider)
		assertMetricLine(t, output, `api_test_http_requests_total`,
			`method="POST".*path="/v1/tenants/:tenant_id/messages".*status_code="202"`, `2`)
		assertMetricLine(t, output, `api_test_http_requests_total`,
			`path="/v1/tenants/:tenant_id/appointments/reserve".*status_code="409"`, `1`)
		assert.NotContains(t, output, "t-1")
	})

	t.Run("Success_SkipsHealthChecks", func(t *testing.T) {
		provider, router := newMetricsRouter(t)

		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health"))

		assert.NotContains(t, scrape(t, provider), `path="/health"`)
	})

	t.Run("Success_UnmatchedRoute", func(t *testing.T) {
		provider, router := newMetricsRouter(t)

		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/v1/unknown"))

		assertMetricLine(t, scrape(t, provider), `api_test_http_requests_total`,
			`path="unmatched".*status_code="404"`, `1`)
	})
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"RoutePattern", "/v1/tenants/:tenant_id/messages", "/v1/tenants/:tenant_id/messages"},
		{"Webhook", "/v1/webhooks/messages/receipts", "/v1/webhooks/messages/receipts"},
		{"EmptyPath", "", unmatchedRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, routeLabel(tt.input))
		})
	}
}
