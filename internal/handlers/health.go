package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness and the active signing strategy.
type HealthHandler struct {
	strategy string
}

func NewHealthHandler(strategy string) *HealthHandler {
	return &HealthHandler{strategy: strategy}
}

// HealthCheck handles GET /health. It never calls the signing service.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.strategy != "" {
		body["strategy"] = h.strategy
	}
	c.JSON(http.StatusOK, body)
}
