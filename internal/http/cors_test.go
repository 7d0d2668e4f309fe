package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		origins string
		wantNil bool
	}{
		{"Disabled", false, "https://desk.clinic.example", true},
		{"EnabledWithoutOrigins", true, "", true},
		{"OnlyInvalidOrigins", true, "desk.clinic.example,ftp://files.example", true},
		{"ValidOrigins", true, "https://desk.clinic.example, https://admin.clinic.example", false},
		{"Wildcard", true, "*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := createCORSMiddleware(tt.enabled, tt.origins, discardLogger())
			if tt.wantNil {
				assert.Nil(t, middleware)
			} else {
				assert.NotNil(t, middleware)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Empty", "", nil},
		{"TrimsWhitespaceAndSlash", " https://desk.clinic.example/ ,http://localhost:3000", []string{
			"https://desk.clinic.example",
			"http://localhost:3000",
		}},
		{"DropsPathsAndSchemes", "https://desk.clinic.example/app,wss://x.example,https://ok.example", []string{
			"https://ok.example",
		}},
		{"SkipsEmptyEntries", ",,https://ok.example,", []string{"https://ok.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseOrigins(tt.input, discardLogger()))
		})
	}
}

func corsRouter(t *testing.T, enabled bool, origins string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	if middleware := createCORSMiddleware(enabled, origins, discardLogger()); middleware != nil {
		router.Use(middleware)
	}
	router.POST("/v1/tenants/:tenant_id/messages", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router
}

func TestCORS_AllowedOrigin(t *testing.T) {
	router := corsRouter(t, true, "https://desk.clinic.example")

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/t-1/messages", nil)
	req.Header.Set("Origin", "https://desk.clinic.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "https://desk.clinic.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ForeignOriginRejected(t *testing.T) {
	router := corsRouter(t, true, "https://desk.clinic.example")

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/t-1/messages", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	router := corsRouter(t, true, "https://desk.clinic.example")

	req := httptest.NewRequest(http.MethodOptions, "/v1/tenants/t-1/messages", nil)
	req.Header.Set("Origin", "https://desk.clinic.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestCORS_Disabled(t *testing.T) {
	router := corsRouter(t, false, "https://desk.clinic.example")

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/t-1/messages", nil)
	req.Header.Set("Origin", "https://desk.clinic.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
