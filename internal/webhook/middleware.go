package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader  = "X-Source-API-Key"
	contextSource = "webhookSource"
	contextKeyID  = "webhookKeyID"
	msgMissingKey = "missing API key"
	msgInvalidKey = "invalid API key"
)

// APIKeyAuthMiddleware validates the X-Source-API-Key header and sets the
// key's source on the gin context.
func APIKeyAuthMiddleware(keys KeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgMissingKey})
			return
		}

		key, err := keys.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgInvalidKey})
			return
		}

		c.Set(contextSource, key.Source)
		c.Set(contextKeyID, key.ID)
		c.Next()
	}
}
