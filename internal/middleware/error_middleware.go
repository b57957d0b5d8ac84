package middleware

import (
	"parley/internal/transport/httpdto"
	"parley/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, resp := httpdto.ErrorResponseFor(err)
		if l != nil {
			log := l.WithContext(c.Request.Context())
			if status >= 500 {
				log.Error("request failed", zap.Error(err), zap.Int("status", status))
			} else {
				log.Debug("request rejected", zap.Error(err), zap.Int("status", status))
			}
		}
		c.JSON(status, resp)
	}
}
