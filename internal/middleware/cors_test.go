package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/eo-datahub/stac-gateway/internal/middleware"
	"github.com/eo-datahub/stac-gateway/test/fixtures"
)

func TestCORS_Preflight(t *testing.T) {
	router := fixtures.SetupTestRouter(t, middleware.CORS())
	router.POST("/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://browser.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_SimpleRequest(t *testing.T) {
	router := fixtures.SetupTestRouter(t, middleware.CORS())
	router.GET("/search", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Origin", "https://browser.example.com")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	router := fixtures.SetupTestRouter(t, middleware.CORS(
		middleware.WithAllowOrigins("https://allowed.example.com"),
		middleware.WithAllowCredentials(true),
	))
	router.GET("/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	allowed := httptest.NewRequest(http.MethodGet, "/search", nil)
	allowed.Header.Set("Origin", "https://allowed.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, allowed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://allowed.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	denied := httptest.NewRequest(http.MethodGet, "/search", nil)
	denied.Header.Set("Origin", "https://denied.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, denied)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := middleware.DefaultCORSConfig()

	assert.True(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{http.MethodOptions, http.MethodPost, http.MethodGet}, cfg.AllowMethods)
	assert.Equal(t, []string{"Content-Type"}, cfg.AllowHeaders)
	assert.False(t, cfg.AllowCredentials)
	assert.Empty(t, cfg.ExposeHeaders)
	assert.Equal(t, "10m0s", cfg.MaxAge.String())
}
