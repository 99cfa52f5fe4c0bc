package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const TraceIDHeader = "X-Trace-ID"

// TraceMiddleware assigns every request a trace id at ingress. The id
// is copied into each observability event emitted during the request
// and echoed in the response header.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set("trace_id", traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace id from context.
func GetTraceID(c *gin.Context) string {
	if id, exists := c.Get("trace_id"); exists {
		if str, ok := id.(string); ok {
			return str
		}
	}
	return ""
}
