package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"herald/pkg/logging"
)

var untracedPrefixes = []string{"/health", "/ready", "/metrics", "/swagger/"}

// GinMiddleware returns the server-span handler followed by a handler that
// copies the span's trace id into the request context for request logs.
// Probe, metrics and docs routes are not traced. A nil provider uses the
// global one.
func GinMiddleware(serviceName string, tp *TracerProvider) []gin.HandlerFunc {
	opts := []otelgin.Option{otelgin.WithFilter(traced)}
	if tp != nil && tp.tp != nil {
		opts = append(opts, otelgin.WithTracerProvider(tp.tp))
	}

	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName, opts...),
		tagTraceID,
	}
}

func traced(r *http.Request) bool {
	for _, prefix := range untracedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	return true
}

func tagTraceID(c *gin.Context) {
	if traceID := TraceID(c.Request.Context()); traceID != "" {
		c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), traceID))
	}
	c.Next()
}
