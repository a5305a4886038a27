package types

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFirstResolveWins(t *testing.T) {
	fut := NewFuture()
	fut.Resolve(OK("first"))
	fut.Resolve(Fail("second"))

	r, ok := fut.Wait(time.Second)
	if !ok || !r.Success || r.Message != "first" {
		t.Fatalf("expected first resolution, got %+v ok=%v", r, ok)
	}
}

func TestWaitRepublishesForLaterWaiters(t *testing.T) {
	fut := Resolved(OK("done"))

	for i := 0; i < 3; i++ {
		r, ok := fut.Wait(time.Second)
		if !ok || r.Message != "done" {
			t.Fatalf("waiter %d got %+v ok=%v", i, r, ok)
		}
	}
}

func TestWaitTimeoutThenLateResolve(t *testing.T) {
	fut := NewFuture()

	if _, ok := fut.Wait(10 * time.Millisecond); ok {
		t.Fatal("unresolved future should time out")
	}

	// Timeout does not cancel the operation; a late resolution still
	// reaches the next waiter.
	fut.Resolve(OK("late"))
	r, ok := fut.Wait(time.Second)
	if !ok || r.Message != "late" {
		t.Fatalf("late resolution lost: %+v ok=%v", r, ok)
	}
}

func TestConcurrentResolvers(t *testing.T) {
	fut := NewFuture()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fut.Resolve(OK("resolver %d", n))
		}(i)
	}
	wg.Wait()

	r, ok := fut.Wait(time.Second)
	if !ok || !r.Success {
		t.Fatalf("expected a single winning resolution, got %+v ok=%v", r, ok)
	}
}

func TestResponseConstructors(t *testing.T) {
	if r := OK("module %s deployed", "shop"); !r.Success || r.Message != "module shop deployed" {
		t.Errorf("unexpected %+v", r)
	}
	if r := Fail("unknown module: %s", "ghost"); r.Success || r.Message != "unknown module: ghost" {
		t.Errorf("unexpected %+v", r)
	}
}

func TestFatalErrorDetection(t *testing.T) {
	base := errors.New("out of memory")
	if !IsFatal(Fatal(base)) {
		t.Error("wrapped fatal not detected")
	}
	if !IsFatal(fmt.Errorf("deploy failed: %w", Fatal(base))) {
		t.Error("nested fatal not detected")
	}
	if IsFatal(base) {
		t.Error("plain error misdetected as fatal")
	}
	if !errors.Is(Fatal(base), base) {
		t.Error("fatal wrapper should unwrap to the cause")
	}
}
