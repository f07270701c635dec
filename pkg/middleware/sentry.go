package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/movemobility/dispatch/pkg/config"
)

// InitSentry initializes the Sentry SDK. Returns an error when the DSN is
// missing so callers can log and continue without error tracking.
func InitSentry(cfg config.SentryConfig, serviceName, environment string) error {
	if !cfg.Enabled || cfg.DSN == "" {
		return fmt.Errorf("sentry DSN is not configured")
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		ServerName:       serviceName,
		AttachStacktrace: true,
	})
}

// RecoveryWithSentry recovers from panics, reports them to Sentry and
// responds with a 500.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetContext("panic", map[string]interface{}{
					"value":      fmt.Sprintf("%v", err),
					"stacktrace": string(debug.Stack()),
				})
				if userID, exists := c.Get("user_id"); exists {
					hub.Scope().SetUser(sentry.User{ID: fmt.Sprintf("%v", userID)})
				}
				hub.RecoverWithContext(c.Request.Context(), err)
				hub.Flush(2 * time.Second)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "internal server error",
				})
			}
		}()

		c.Next()
	}
}
