package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSOption adjusts the STAC CORS defaults.
type CORSOption func(*cors.Config)

// WithAllowOrigins restricts the allowed origins instead of allowing any.
func WithAllowOrigins(origins ...string) CORSOption {
	return func(cfg *cors.Config) {
		if len(origins) == 0 {
			return
		}
		cfg.AllowAllOrigins = false
		cfg.AllowOrigins = origins
	}
}

// WithAllowCredentials toggles Access-Control-Allow-Credentials.
func WithAllowCredentials(allow bool) CORSOption {
	return func(cfg *cors.Config) {
		cfg.AllowCredentials = allow
	}
}

// DefaultCORSConfig returns the CORS settings recommended for STAC APIs.
func DefaultCORSConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{http.MethodOptions, http.MethodPost, http.MethodGet},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           600 * time.Second,
	}
}

func CORS(opts ...CORSOption) gin.HandlerFunc {
	cfg := DefaultCORSConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cors.New(cfg)
}
