package box

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/descriptor"
	"github.com/modforge/container/internal/logging"
)

func newDaemon(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *RemoteProvider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewRemoteProvider(RemoteConfig{Address: srv.URL}, logging.NewNop())
	return srv, p
}

func TestCreateStartStopRelease(t *testing.T) {
	var calls []string
	_, p := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/boxes":
			var req createRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad create body: %v", err)
			}
			if req.Location != "/srv/shop" {
				t.Errorf("unexpected location %q", req.Location)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(createResponse{ID: "bx-1"})
		case r.URL.Path == "/boxes/bx-1/start":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(callResponse{Result: map[string]interface{}{"port": 9090.0}})
		case r.URL.Path == "/boxes/bx-1/stop":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete && r.URL.Path == "/boxes/bx-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	desc := &descriptor.Descriptor{Location: "/srv/shop", Profiles: []string{"default"}, Start: "shop/start", Stop: "shop/stop"}
	systems := bootstrap.Systems{"store": struct{}{}}

	bx, err := p.Create(ctx, desc, Options{ResolveDependencies: true}, systems)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if bx.ID() != "bx-1" {
		t.Errorf("unexpected box id %q", bx.ID())
	}

	result, err := bx.CallStart(ctx, "shop/start", map[string]interface{}{"env": "test"}, systems)
	if err != nil {
		t.Fatalf("CallStart failed: %v", err)
	}
	if m, ok := result.(map[string]interface{}); !ok || m["port"] != 9090.0 {
		t.Errorf("unexpected start result %v", result)
	}

	if err := bx.CallStop(ctx, "shop/stop", result); err != nil {
		t.Fatalf("CallStop failed: %v", err)
	}

	bx.Release()
	bx.Release() // idempotent

	deletes := 0
	for _, c := range calls {
		if c == "DELETE /boxes/bx-1" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("expected exactly one release call, got %d", deletes)
	}
}

func TestCreateDaemonError(t *testing.T) {
	_, p := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such profile", http.StatusBadRequest)
	})

	_, err := p.Create(context.Background(), descriptor.Default("x.mod"), Options{}, nil)
	if err == nil {
		t.Fatal("expected error from daemon rejection")
	}
}

func TestManifestEntries(t *testing.T) {
	_, p := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boxes":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(createResponse{ID: "bx-2"})
		case "/boxes/bx-2/manifest":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(manifestResponse{Entries: map[string]string{
				"ring/ring-core": "1.9.6",
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	bx, err := p.Create(context.Background(), descriptor.Default("x.mod"), Options{}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries, err := bx.ManifestEntries(context.Background())
	if err != nil {
		t.Fatalf("ManifestEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "ring/ring-core" || entries[0].Value != "1.9.6" {
		t.Errorf("unexpected entries %v", entries)
	}
}
