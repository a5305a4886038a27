package id

import (
	"strings"
	"testing"
)

func TestPrefixes(t *testing.T) {
	if !strings.HasPrefix(string(NewRequestID()), "req_") {
		t.Error("request id missing prefix")
	}
	if !strings.HasPrefix(string(NewTraceID()), "trace_") {
		t.Error("trace id missing prefix")
	}
	if !strings.HasPrefix(string(NewSpanID()), "span_") {
		t.Error("span id missing prefix")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[RequestID]bool)
	for i := 0; i < 1000; i++ {
		rid := NewRequestID()
		if seen[rid] {
			t.Fatalf("duplicate id %s", rid)
		}
		seen[rid] = true
	}
}

func TestSortability(t *testing.T) {
	a := string(NewRequestID())
	b := string(NewRequestID())
	if a >= b {
		t.Errorf("ids not monotonic: %s then %s", a, b)
	}
}

func TestValid(t *testing.T) {
	if !Valid(string(NewTraceID()), TracePrefix) {
		t.Error("fresh trace id should validate")
	}
	if Valid("trace_not-a-ulid", TracePrefix) {
		t.Error("malformed ulid should not validate")
	}
	if Valid(string(NewTraceID()), SpanPrefix) {
		t.Error("wrong prefix should not validate")
	}
}
