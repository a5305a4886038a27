package box

import (
	"context"
	"net/http"

	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/descriptor"
)

// ManifestEntry is one key/value attribute of a box manifest.
type ManifestEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Options carries module resolution settings passed through to the
// provider on every create.
type Options struct {
	ResolveDependencies bool     `json:"resolve_dependencies"`
	IsolationPatterns   []string `json:"isolation_patterns"`
}

// Box is one isolated execution context hosting a module's code. A box
// is exclusively owned by its module's actor for its lifetime.
type Box interface {
	// ID identifies the box within its provider.
	ID() string

	// CallStart runs the module's start capability inside the box,
	// handing it the root configuration and the running backend systems.
	CallStart(ctx context.Context, capability string, rootConfig map[string]interface{}, systems bootstrap.Systems) (interface{}, error)

	// CallStop runs the module's stop capability with the value the
	// start capability returned.
	CallStop(ctx context.Context, capability string, startResult interface{}) error

	// Release destroys the box. Idempotent; invoked on every exit path
	// once a box exists.
	Release()

	// ManifestEntries enumerates dependency-version metadata visible
	// inside the box.
	ManifestEntries(ctx context.Context) ([]ManifestEntry, error)
}

// HTTPBox is implemented by boxes whose module can serve HTTP.
type HTTPBox interface {
	Box
	Handler() http.Handler
}

// Provider constructs isolated execution contexts.
type Provider interface {
	Create(ctx context.Context, desc *descriptor.Descriptor, opts Options, systems bootstrap.Systems) (Box, error)
}
