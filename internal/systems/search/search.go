package search

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/modforge/container/internal/systems/store"
	"github.com/modforge/container/internal/types"
)

const defaultLimit = 100

// Lister exposes the live module registry snapshot.
type Lister interface {
	List() []types.ModuleInfo
}

// Journal exposes the persisted event history.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	ByModule(ctx context.Context, module string, limit int) ([]store.Record, error)
	ByKind(ctx context.Context, kind string, limit int) ([]store.Record, error)
}

// Search answers queries over both the live registry and the event
// journal. Read-only; it never mutates lifecycle state.
type Search struct {
	modules Lister
	journal Journal
}

func New(modules Lister, journal Journal) *Search {
	return &Search{modules: modules, journal: journal}
}

// Modules returns the modules whose name matches pattern (doublestar
// glob; empty matches all), optionally restricted to one state.
func (s *Search) Modules(pattern string, state types.State) ([]types.ModuleInfo, error) {
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid module pattern %q", pattern)
		}
	}

	var out []types.ModuleInfo
	for _, info := range s.modules.List() {
		if state != "" && info.State != state {
			continue
		}
		if pattern != "" {
			ok, err := doublestar.Match(pattern, info.Name)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// EventFilter narrows an event history query. Module and Kind are
// exclusive; Module wins when both are set.
type EventFilter struct {
	Module string
	Kind   string
	Limit  int
}

// Events returns journaled events, newest first.
func (s *Search) Events(ctx context.Context, f EventFilter) ([]store.Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	switch {
	case f.Module != "":
		return s.journal.ByModule(ctx, f.Module, limit)
	case f.Kind != "":
		return s.journal.ByKind(ctx, f.Kind, limit)
	default:
		return s.journal.Recent(ctx, limit)
	}
}
