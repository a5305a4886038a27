package actor

import (
	"sync"

	"github.com/modforge/container/internal/box"
	"github.com/modforge/container/internal/descriptor"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

// Module is the actor's private bookkeeping value: the authoritative
// record for one module. Work items receive it by pointer and are the
// only code allowed to mutate it.
type Module struct {
	Name  string
	State types.State
	// File is preserved across redeploys so a redeploy can re-read the
	// original artifact.
	File        string
	Desc        *descriptor.Descriptor
	Box         box.Box
	StartResult interface{}
}

// Info returns the externally visible snapshot of the module.
func (m *Module) Info() types.ModuleInfo {
	return types.ModuleInfo{Name: m.Name, State: m.State, File: m.File}
}

// Actor is a sequential, single-writer execution unit bound to one
// module name. Work items run one at a time in strict submission
// order; operations on different module names proceed in parallel
// because each name has its own actor. Only lightweight bookkeeping
// belongs in work items — slow box I/O runs on separate goroutines
// that submit a follow-up item with the outcome.
type Actor struct {
	name  string
	queue chan func(*Module)
	log   *logging.Logger

	// mu guards cur for readers outside the queue loop (List, Kill).
	mu      sync.Mutex
	cur     Module
	stopped bool
}

const queueDepth = 64

// New creates an actor for name with an undeployed module record and
// starts its processing loop.
func New(name, file string, log *logging.Logger) *Actor {
	a := &Actor{
		name:  name,
		queue: make(chan func(*Module), queueDepth),
		log:   log,
		cur: Module{
			Name:  name,
			State: types.StateUndeployed,
			File:  file,
		},
	}
	go a.loop()
	return a
}

// Submit enqueues a work item. It returns false if the actor has been
// stopped, in which case the item will never run.
func (a *Actor) Submit(fn func(*Module)) bool {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return false
	}
	a.mu.Unlock()

	defer func() {
		// Losing a race with Stop closes the queue under us; report
		// the item as not accepted instead of crashing the caller.
		recover()
	}()
	a.queue <- fn
	return true
}

// Stop terminates the actor's loop. Pending items still drain; new
// submissions are rejected. Used only by the kill escape hatch.
func (a *Actor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	close(a.queue)
}

// Info returns a snapshot of the module's externally visible state.
func (a *Actor) Info() types.ModuleInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur.Info()
}

// Snapshot returns a copy of the full module record. The Box reference
// inside it is shared; callers other than kill must not touch it.
func (a *Actor) Snapshot() Module {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}

func (a *Actor) loop() {
	for fn := range a.queue {
		a.run(fn)
	}
}

// run executes one work item against the current module value. A
// panicking item is reported and the actor keeps its last good state;
// one bad operation must not disable the module. Fatal errors are the
// exception: they re-panic past the actor so the process dies.
func (a *Actor) run(fn func(*Module)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && types.IsFatal(err) {
				panic(r)
			}
			a.log.Error("module operation panicked",
				zap.String("module", a.name),
				zap.Any("panic", r))
		}
	}()
	fn(&a.cur)
}
