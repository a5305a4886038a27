package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/systems/search"
	"github.com/modforge/container/internal/types"
)

// waitTimeout bounds how long a management request blocks on a
// lifecycle operation before reporting it as still in progress.
const waitTimeout = 60 * time.Second

// Lifecycle is the slice of the module manager the API drives.
type Lifecycle interface {
	List() []types.ModuleInfo
	Deploy(name, file string) *types.Future
	Undeploy(name string) *types.Future
	Redeploy(name string) *types.Future
	Kill(name string) *types.Future
	Versions(name string) *types.Future
}

// Handlers contains the management API handlers.
type Handlers struct {
	manager Lifecycle
	finder  *search.Search
	started time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(manager Lifecycle, finder *search.Search) *Handlers {
	return &Handlers{
		manager: manager,
		finder:  finder,
		started: time.Now(),
	}
}

// Root handles the banner endpoint.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "module container",
		"version": "0.3.0",
	})
}

// Health reports container health and module counts by state.
func (h *Handlers) Health(c *gin.Context) {
	counts := make(map[string]int)
	for _, info := range h.manager.List() {
		counts[string(info.State)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"modules":        counts,
	})
}

// ListModules lists known modules, optionally filtered by name pattern
// and state.
func (h *Handlers) ListModules(c *gin.Context) {
	pattern := c.Query("pattern")
	state := types.State(c.Query("state"))

	var (
		infos []types.ModuleInfo
		err   error
	)
	if h.finder != nil && (pattern != "" || state != "") {
		infos, err = h.finder.Modules(pattern, state)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		infos = h.manager.List()
	}

	c.JSON(http.StatusOK, gin.H{
		"modules": infos,
		"count":   len(infos),
	})
}

type deployRequest struct {
	File string `json:"file" binding:"required"`
}

// DeployModule deploys the named module from an artifact path.
func (h *Handlers) DeployModule(c *gin.Context) {
	name := c.Param("name")
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required: " + err.Error()})
		return
	}
	h.respond(c, h.manager.Deploy(name, req.File))
}

// UndeployModule stops and unloads the named module.
func (h *Handlers) UndeployModule(c *gin.Context) {
	h.respond(c, h.manager.Undeploy(c.Param("name")))
}

// RedeployModule restarts the named module from its remembered artifact.
func (h *Handlers) RedeployModule(c *gin.Context) {
	h.respond(c, h.manager.Redeploy(c.Param("name")))
}

// KillModule force-removes the named module.
func (h *Handlers) KillModule(c *gin.Context) {
	h.respond(c, h.manager.Kill(c.Param("name")))
}

// ModuleVersions lists dependency versions visible inside the module.
func (h *Handlers) ModuleVersions(c *gin.Context) {
	name := c.Param("name")
	r, ok := h.manager.Versions(name).Wait(waitTimeout)
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"success": false, "message": "version inspection still in progress"})
		return
	}
	if !r.Success {
		c.JSON(statusFor(r), gin.H{"success": false, "message": r.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"module":   name,
		"versions": strings.Split(strings.TrimRight(r.Message, "\n"), "\n"),
	})
}

// ListEvents queries the lifecycle event journal.
func (h *Handlers) ListEvents(c *gin.Context) {
	if h.finder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event journal disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.finder.Events(c.Request.Context(), search.EventFilter{
		Module: c.Query("module"),
		Kind:   c.Query("kind"),
		Limit:  limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": recs,
		"count":  len(recs),
	})
}

// respond awaits a lifecycle future and maps its outcome to a status.
func (h *Handlers) respond(c *gin.Context, fut *types.Future) {
	r, ok := fut.Wait(waitTimeout)
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{
			"success": false,
			"message": "operation still in progress",
		})
		return
	}
	status := http.StatusOK
	if !r.Success {
		status = statusFor(r)
	}
	c.JSON(status, gin.H{"success": r.Success, "message": r.Message})
}

func statusFor(r types.Response) int {
	if strings.Contains(r.Message, "unknown module") {
		return http.StatusNotFound
	}
	return http.StatusConflict
}
