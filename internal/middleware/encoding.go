package middleware

import (
	"github.com/gin-gonic/gin"
)

// Encoding drops Accept-Encoding so upstream bodies arrive uncompressed and can be rewritten.
func Encoding() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header.Del("Accept-Encoding")
		c.Next()
	}
}
