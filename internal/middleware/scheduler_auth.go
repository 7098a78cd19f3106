package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SchedulerKeyHeader carries the shared key of the external scheduler.
const SchedulerKeyHeader = "X-Scheduler-Key"

// SchedulerAuthMiddleware guards the batch endpoints an external scheduler
// calls on behalf of every user. An empty apiKey disables them.
func SchedulerAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, http.StatusServiceUnavailable, "SCHEDULER_NOT_CONFIGURED", "Scheduler endpoints are not configured")
			return
		}
		key := c.GetHeader(SchedulerKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or missing scheduler key")
			return
		}
		c.Set("scheduler", true)
		c.Next()
	}
}
