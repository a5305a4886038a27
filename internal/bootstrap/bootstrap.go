package bootstrap

import (
	"errors"
	"fmt"

	"github.com/modforge/container/internal/logging"
	"go.uber.org/zap"
)

// ErrSystemMissing indicates a required system is absent from the
// running set; this is a configuration error, not a runtime failure.
var ErrSystemMissing = errors.New("required system not running")

// Systems is the set of running backend systems, keyed by id. It is
// built incrementally during startup and read-only afterwards.
type Systems map[string]interface{}

// Startable is a backend system that can be brought up. Start receives
// every system started before it, in declaration order.
type Startable interface {
	Start(running Systems) (interface{}, error)
}

// Stoppable is implemented by running instances that need teardown.
type Stoppable interface {
	Stop() error
}

// StartFunc adapts a function to the Startable interface.
type StartFunc func(running Systems) (interface{}, error)

// Start implements Startable.
func (f StartFunc) Start(running Systems) (interface{}, error) { return f(running) }

// Entry pairs a system id with its Startable.
type Entry struct {
	ID     string
	System Startable
}

type started struct {
	id       string
	instance interface{}
}

// Stack starts an ordered list of systems and guarantees teardown in
// exact reverse start order, on both normal exit and partial failure.
type Stack struct {
	log     *logging.Logger
	running []started
}

// NewStack creates an empty system stack.
func NewStack(log *logging.Logger) *Stack {
	return &Stack{log: log}
}

// Start brings up every entry in order. Each Start call sees the
// systems registered so far. If any entry fails, everything already
// started is stopped in reverse order and the failure is returned;
// partial success is never left running.
func (s *Stack) Start(entries []Entry) (Systems, error) {
	running := make(Systems, len(entries))
	for _, e := range entries {
		s.log.Info("starting system", zap.String("system", e.ID))
		instance, err := e.System.Start(running)
		if err != nil {
			s.log.Error("system failed to start",
				zap.String("system", e.ID), zap.Error(err))
			s.Stop()
			return nil, fmt.Errorf("start system %s: %w", e.ID, err)
		}
		running[e.ID] = instance
		s.running = append(s.running, started{id: e.ID, instance: instance})
	}
	return running, nil
}

// Stop tears down every started system in reverse start order. Each
// instance is stopped exactly once; repeated calls are no-ops.
func (s *Stack) Stop() {
	for i := len(s.running) - 1; i >= 0; i-- {
		r := s.running[i]
		if stoppable, ok := r.instance.(Stoppable); ok {
			s.log.Info("stopping system", zap.String("system", r.id))
			if err := stoppable.Stop(); err != nil {
				s.log.Error("system stop failed",
					zap.String("system", r.id), zap.Error(err))
			}
		}
	}
	s.running = nil
}

// Run starts the entries, invokes body with the running systems, and
// stops everything in reverse order no matter how body exits.
func Run(log *logging.Logger, entries []Entry, body func(Systems) error) error {
	stack := NewStack(log)
	running, err := stack.Start(entries)
	if err != nil {
		return err
	}
	defer stack.Stop()
	return body(running)
}

// Require looks up the system registered under id, failing with a
// configuration error when absent. Dependent systems call this at
// construction time so a bad wiring surfaces at startup, not first use.
func Require(running Systems, id string) (interface{}, error) {
	instance, ok := running[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSystemMissing, id)
	}
	return instance, nil
}
