package types

import (
	"fmt"
	"time"
)

// Response is the immutable result of a lifecycle operation.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OK builds a success response.
func OK(format string, args ...interface{}) Response {
	return Response{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failure response.
func Fail(format string, args ...interface{}) Response {
	return Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Future delivers exactly one Response. The first Resolve wins; later
// calls are discarded so racing completion paths cannot double-report.
type Future struct {
	ch chan Response
}

// NewFuture creates an unresolved future.
func NewFuture() *Future {
	return &Future{ch: make(chan Response, 1)}
}

// Resolved creates a future already carrying a response. Used for
// operations rejected before any work is queued.
func Resolved(r Response) *Future {
	f := NewFuture()
	f.Resolve(r)
	return f
}

// Resolve delivers the response. Only the first call has any effect.
func (f *Future) Resolve(r Response) {
	select {
	case f.ch <- r:
	default:
	}
}

// Wait blocks until the future resolves or the timeout elapses. The
// second return value is false on timeout; the underlying operation is
// not cancelled and may still complete later.
func (f *Future) Wait(timeout time.Duration) (Response, bool) {
	select {
	case r := <-f.ch:
		f.Resolve(r) // keep the value readable for later waiters
		return r, true
	case <-time.After(timeout):
		return Response{}, false
	}
}
