package logger

import (
	"net/http"
	"strings"
	"time"

	obscontext "github.com/amrherek/OJO-DynamicDiscount/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const correlationHeader = "X-Request-Id"

// GinMiddleware writes one access line per call. Process triggers also carry
// their mode and input so a run can be traced back to the call that started
// it; probes are logged at debug.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(correlationHeader, id)
		c.Request = c.Request.WithContext(obscontext.WithHTTPRequestID(c.Request.Context(), id))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if mode := c.Query("mode"); mode != "" {
			fields = append(fields, zap.String("trigger_mode", mode), zap.String("trigger_input", c.Query("inputValue")))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}

		if ce := FromContext(c.Request.Context()).Check(accessLevel(route, status), "http.access"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(route string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zap.ErrorLevel
	case status >= http.StatusBadRequest:
		return zap.WarnLevel
	case route == "/health" || route == "/metrics":
		return zap.DebugLevel
	default:
		return zap.InfoLevel
	}
}
