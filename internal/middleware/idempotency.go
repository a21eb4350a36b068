package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyTTL = 24 * time.Hour

// IdempotencyGuard rejects rapid resubmissions that carry the same
// Idempotency-Key header, using Redis SETNX so the guard holds across
// replicas. This is a cheap front gate only; true idempotency comes from the
// unique external reference on the payment row. Requests without the header,
// or when Redis is not configured, pass straight through.
func IdempotencyGuard(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			c.Next()
			return
		}

		cacheKey := "idempotency:" + c.Request.URL.Path + ":" + key
		acquired, err := client.SetNX(c.Request.Context(), cacheKey, "1", idempotencyKeyTTL).Result()
		if err != nil {
			// Redis being down must not block payments.
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":   "Duplicate request",
				"message": "Request with this idempotency key has already been processed",
			})
			return
		}

		c.Next()

		// A failed request releases the key so the client can retry.
		if c.Writer.Status() >= 400 {
			client.Del(c.Request.Context(), cacheKey)
		}
	}
}
