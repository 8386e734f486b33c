package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/tokencache"
)

// TokenCache is the part of the token cache exposed for diagnostics.
type TokenCache interface {
	Snapshot() []tokencache.EntryInfo
	Invalidate(scopeKey string) bool
}

// TokensHandler exposes the token cache for operators. Token values are never returned.
type TokensHandler struct {
	cache  TokenCache
	logger *logger.Logger
}

func NewTokensHandler(log *logger.Logger, cache TokenCache) *TokensHandler {
	if log == nil {
		log = logger.Production()
	}
	return &TokensHandler{
		cache:  cache,
		logger: log,
	}
}

// ListTokens handles GET /debug/tokens.
func (h *TokensHandler) ListTokens(c *gin.Context) {
	entries := h.cache.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// InvalidateToken handles DELETE /debug/tokens/*scope. Scope keys may contain slashes.
func (h *TokensHandler) InvalidateToken(c *gin.Context) {
	scope := strings.TrimPrefix(c.Param("scope"), "/")
	if scope == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope is required"})
		return
	}

	if !h.cache.Invalidate(scope) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached token for scope"})
		return
	}

	h.logger.Info("Token cache entry invalidated", "scope", scope)
	c.Status(http.StatusNoContent)
}
