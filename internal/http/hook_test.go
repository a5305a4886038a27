package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/box"
	"github.com/modforge/container/internal/logging"
)

type handlerBox struct {
	handler http.Handler
}

func (b *handlerBox) ID() string { return "bx-test" }

func (b *handlerBox) CallStart(ctx context.Context, capability string, rootConfig map[string]interface{}, systems bootstrap.Systems) (interface{}, error) {
	return nil, nil
}

func (b *handlerBox) CallStop(ctx context.Context, capability string, startResult interface{}) error {
	return nil
}

func (b *handlerBox) Release() {}

func (b *handlerBox) ManifestEntries(ctx context.Context) ([]box.ManifestEntry, error) {
	return nil, nil
}

func (b *handlerBox) Handler() http.Handler { return b.handler }

// plainBox implements box.Box without an HTTP surface.
type plainBox struct{ handlerBox }

func (b *plainBox) Handler() struct{} { return struct{}{} }

func hookRouter(h *Hook) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Any("/modules/:name/http/*path", h.Dispatch)
	return r
}

func TestDispatchStripsMountPrefix(t *testing.T) {
	var gotPath string
	bx := &handlerBox{handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})}

	hook := NewHook(logging.NewNop())
	hook.RegisterHandler("shop", bx)
	r := hookRouter(hook)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/modules/shop/http/cart/items", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotPath != "/cart/items" {
		t.Errorf("expected stripped path /cart/items, got %q", gotPath)
	}
}

func TestDispatchUnmounted(t *testing.T) {
	hook := NewHook(logging.NewNop())
	r := hookRouter(hook)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/modules/ghost/http/", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUnregisterUnmounts(t *testing.T) {
	bx := &handlerBox{handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})}
	hook := NewHook(logging.NewNop())
	hook.RegisterHandler("shop", bx)
	if !hook.Mounted("shop") {
		t.Fatal("handler should be mounted")
	}

	hook.UnregisterHandler("shop")
	if hook.Mounted("shop") {
		t.Fatal("handler should be unmounted")
	}

	r := hookRouter(hook)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/modules/shop/http/", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after unregister, got %d", w.Code)
	}
}

func TestRegisterBoxWithoutHTTPSurface(t *testing.T) {
	hook := NewHook(logging.NewNop())
	hook.RegisterHandler("shop", &plainBox{})
	if hook.Mounted("shop") {
		t.Fatal("box without an http surface must not be mounted")
	}
}
