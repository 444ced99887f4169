package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/gin-gonic/gin"
)

// Logger logs one line per HTTP request once it has been handled.
// For websocket routes that is when the session ends.
func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := responseStatus(c)
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		log.LogAttrs(c.Request.Context(), level, "http request",
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
			logger.StatusCode(status),
			logger.ClientIP(c.ClientIP()),
			logger.Elapsed(start),
		)
	}
}

// responseStatus reports 101 for upgraded connections: the upgrader writes
// the handshake on the hijacked conn, so gin still holds its default 200.
func responseStatus(c *gin.Context) int {
	status := c.Writer.Status()
	if status == http.StatusOK && c.IsWebsocket() && c.Writer.Written() && c.Writer.Size() <= 0 {
		return http.StatusSwitchingProtocols
	}
	return status
}

// Recovery turns a handler panic into a 500 response and an error log.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic while handling request",
					slog.Any("panic", r),
					logger.Path(c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}
