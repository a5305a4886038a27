package tracing

import (
	"context"
	"time"

	"github.com/modforge/container/internal/id"
	"github.com/modforge/container/internal/logging"
	"go.uber.org/zap"
)

// Span represents a single operation in a trace.
type Span struct {
	TraceID    id.TraceID
	SpanID     id.SpanID
	ParentID   id.SpanID
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer collects completed spans and emits them as structured log
// records. Submission never blocks: a full buffer drops the span.
type Tracer struct {
	service string
	log     *logging.Logger
	spans   chan *Span
}

func New(service string, log *logging.Logger) *Tracer {
	t := &Tracer{
		service: service,
		log:     log,
		spans:   make(chan *Span, 1000),
	}
	go t.collect()
	return t
}

// StartSpan creates a span under the trace carried by ctx, starting a
// new trace when ctx carries none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(id.TraceID)
	if traceID == "" {
		traceID = id.NewTraceID()
	}
	parentID, _ := ctx.Value(spanIDKey).(id.SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    id.NewSpanID(),
		ParentID:  parentID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Finish marks the span as complete.
func (s *Span) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span.
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code.
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit sends a completed span to the collector.
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.log.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)))
	}
}

func (t *Tracer) collect() {
	for span := range t.spans {
		t.emit(span)
	}
}

func (t *Tracer) emit(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.log.Error("span completed with error", fields...)
		return
	}
	t.log.Info("span completed", fields...)
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) id.TraceID {
	traceID, _ := ctx.Value(traceIDKey).(id.TraceID)
	return traceID
}

// GetSpanID retrieves the span ID from context.
func GetSpanID(ctx context.Context) id.SpanID {
	spanID, _ := ctx.Value(spanIDKey).(id.SpanID)
	return spanID
}

// WithTrace seeds ctx with an inbound trace context.
func WithTrace(ctx context.Context, traceID id.TraceID, spanID id.SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}
