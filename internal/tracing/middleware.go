package tracing

import (
	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/id"
)

// HTTPMiddleware traces every management API request. Inbound trace
// context arrives in X-Trace-ID and X-Span-ID headers; the span's own
// identifiers are echoed back so callers can correlate.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(),
			id.TraceID(c.GetHeader("X-Trace-ID")),
			id.SpanID(c.GetHeader("X-Span-ID")))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.url", c.Request.URL.String())

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", string(span.TraceID))
		c.Header("X-Span-ID", string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
