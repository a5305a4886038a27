package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/id"
	"github.com/modforge/container/internal/logging"
)

func TestSpanInheritsTrace(t *testing.T) {
	tracer := New("container", logging.NewNop())

	parent, ctx := tracer.StartSpan(context.Background(), "deploy")
	child, _ := tracer.StartSpan(ctx, "box.create")

	if child.TraceID != parent.TraceID {
		t.Errorf("child trace %s != parent trace %s", child.TraceID, parent.TraceID)
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child parent %s != parent span %s", child.ParentID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child must get its own span id")
	}
}

func TestStartSpanCreatesTrace(t *testing.T) {
	tracer := New("container", logging.NewNop())

	span, ctx := tracer.StartSpan(context.Background(), "deploy")
	if !id.Valid(string(span.TraceID), id.TracePrefix) {
		t.Errorf("bad trace id %s", span.TraceID)
	}
	if GetTraceID(ctx) != span.TraceID || GetSpanID(ctx) != span.SpanID {
		t.Error("context not seeded with span identity")
	}
}

func TestHTTPMiddlewarePropagation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("container", logging.NewNop())

	var seenTrace id.TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/modules", func(c *gin.Context) {
		seenTrace = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	inbound := id.NewTraceID()
	req := httptest.NewRequest("GET", "/modules", nil)
	req.Header.Set("X-Trace-ID", string(inbound))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seenTrace != inbound {
		t.Errorf("handler saw trace %s, want %s", seenTrace, inbound)
	}
	if got := w.Header().Get("X-Trace-ID"); got != string(inbound) {
		t.Errorf("response trace header %s, want %s", got, inbound)
	}
	if !strings.HasPrefix(w.Header().Get("X-Span-ID"), "span_") {
		t.Error("response missing span header")
	}
}

func TestSubmitNeverBlocks(t *testing.T) {
	tracer := &Tracer{service: "container", log: logging.NewNop(), spans: make(chan *Span, 1)}

	for i := 0; i < 10; i++ {
		span, _ := tracer.StartSpan(context.Background(), "op")
		span.Finish()
		tracer.Submit(span)
	}
}
