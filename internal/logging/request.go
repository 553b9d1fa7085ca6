package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDContextKey     = "coffeeshop_request_id"
	requestLoggerContextKey = "coffeeshop_request_logger"
	maxRequestIDLength      = 128
)

// RequestMiddleware tags each request with an id, exposes a request-scoped logger and
// writes one access log line once the handler chain completes.
func RequestMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		started := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		requestLogger := logger.With(zap.String("request_id", requestID))
		c.Set(requestIDContextKey, requestID)
		c.Set(requestLoggerContextKey, requestLogger)

		c.Next()

		requestLogger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		)
	}
}

// FromContext returns the request-scoped logger, or fallback when none was attached.
func FromContext(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if value, ok := c.Get(requestLoggerContextKey); ok {
		if requestLogger, ok := value.(*zap.Logger); ok {
			return requestLogger
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// RequestID returns the correlation id assigned by RequestMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}
