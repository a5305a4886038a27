package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/box"
	"github.com/modforge/container/internal/logging"
	"go.uber.org/zap"
)

// Hook routes inbound HTTP traffic to deployed modules. The lifecycle
// manager registers a handler when a module with an HTTP capability
// finishes deploying and unregisters it before the module's box stops,
// so no request is ever dispatched to a dying module.
type Hook struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
	log      *logging.Logger
}

func NewHook(log *logging.Logger) *Hook {
	return &Hook{
		handlers: make(map[string]http.Handler),
		log:      log,
	}
}

// RegisterHandler mounts the module's handler. Boxes without an HTTP
// surface are ignored.
func (h *Hook) RegisterHandler(name string, bx box.Box) {
	hb, ok := bx.(box.HTTPBox)
	if !ok {
		h.log.Warn("module declared an http handler but its box has no http surface",
			zap.String("module", name))
		return
	}
	h.mu.Lock()
	h.handlers[name] = hb.Handler()
	h.mu.Unlock()
	h.log.Info("module handler mounted", zap.String("module", name))
}

// UnregisterHandler unmounts the module's handler. Unknown names are a
// no-op so undeploy paths can call it unconditionally.
func (h *Hook) UnregisterHandler(name string) {
	h.mu.Lock()
	_, existed := h.handlers[name]
	delete(h.handlers, name)
	h.mu.Unlock()
	if existed {
		h.log.Info("module handler unmounted", zap.String("module", name))
	}
}

// Mounted reports whether a handler exists for name.
func (h *Hook) Mounted(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.handlers[name]
	return ok
}

// Dispatch serves a module-addressed request. The module-relative path
// comes from the route's catch-all parameter; the mount prefix is
// stripped before the module handler sees the request.
func (h *Hook) Dispatch(c *gin.Context) {
	name := c.Param("name")

	h.mu.RLock()
	handler, ok := h.handlers[name]
	h.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no handler mounted for module " + name})
		return
	}

	rel := c.Param("path")
	if rel == "" {
		rel = "/"
	}
	c.Request.URL.Path = rel
	handler.ServeHTTP(c.Writer, c.Request)
}
