package middleware

import (
	"github.com/gin-gonic/gin"

	"project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := errors.HTTPStatusFromError(err)
		if statusCode >= 500 {
			log.Error("Request failed", "error", err, "method", c.Request.Method, "path", c.FullPath(),
				"request_id", GetRequestID(c))
		}

		c.JSON(statusCode, gin.H{
			"error": errors.PublicMessage(err),
		})
	}
}
