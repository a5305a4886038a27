package notify

import (
	"sync"

	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

// Callback receives a lifecycle event and its arguments. Callbacks run
// synchronously on the emitting goroutine; keep them fast.
type Callback func(event types.Event, args []string)

// Bus fans lifecycle events out to named subscribers. Registration is
// last-write-wins per name. A panicking subscriber is logged and
// skipped; it never blocks delivery to the others.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]Callback
	log  *logging.Logger
}

// NewBus creates an empty notification bus.
func NewBus(log *logging.Logger) *Bus {
	return &Bus{
		subs: make(map[string]Callback),
		log:  log,
	}
}

// Register adds or replaces the subscriber under name.
func (b *Bus) Register(name string, cb Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = cb
}

// Unregister removes the subscriber under name, if any.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, name)
}

// Subscribers returns the current subscriber names.
func (b *Bus) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	return names
}

// Emit delivers event with args to every subscriber in turn.
func (b *Bus) Emit(event types.Event, args ...string) {
	b.mu.RLock()
	snapshot := make(map[string]Callback, len(b.subs))
	for name, cb := range b.subs {
		snapshot[name] = cb
	}
	b.mu.RUnlock()

	for name, cb := range snapshot {
		b.deliver(name, cb, event, args)
	}
}

func (b *Bus) deliver(name string, cb Callback, event types.Event, args []string) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("notifier panicked",
				zap.String("notifier", name),
				zap.String("event", string(event)),
				zap.Any("panic", r))
		}
	}()
	cb(event, args)
}
