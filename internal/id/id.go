// Package id provides centralized ID generation for the container.
//
// IDs are prefixed ULIDs: lexicographically sortable, unique across
// the process, and readable in logs (req_*, trace_*, span_*).
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one management API or daemon request.
type RequestID string

// TraceID identifies a request trace across services.
type TraceID string

// SpanID identifies one operation within a trace.
type SpanID string

const (
	RequestPrefix = "req"
	TracePrefix   = "trace"
	SpanPrefix    = "span"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func NewRequestID() RequestID { return RequestID(RequestPrefix + "_" + newULID()) }
func NewTraceID() TraceID     { return TraceID(TracePrefix + "_" + newULID()) }
func NewSpanID() SpanID       { return SpanID(SpanPrefix + "_" + newULID()) }

// Valid reports whether s is a well-formed prefixed ULID for prefix.
func Valid(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}
