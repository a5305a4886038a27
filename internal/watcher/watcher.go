package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

// debounce coalesces the burst of write events an artifact copy
// produces into one lifecycle operation.
const debounce = 500 * time.Millisecond

// Lifecycle is the slice of the module manager the watcher drives.
type Lifecycle interface {
	List() []types.ModuleInfo
	Deploy(name, file string) *types.Future
	Redeploy(name string) *types.Future
	Undeploy(name string) *types.Future
}

// Watcher hot-deploys module artifacts dropped into a directory. An
// artifact appearing or changing deploys or redeploys the module named
// after the file; the artifact disappearing undeploys it.
type Watcher struct {
	dir     string
	glob    string
	manager Lifecycle
	log     *logging.Logger

	fsw  *fsnotify.Watcher
	mu   sync.Mutex
	pend map[string]*time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher over dir for artifacts matching glob.
func New(dir, glob string, manager Lifecycle, log *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve directory: %w", err)
	}
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("watch: invalid glob %q", glob)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", abs, err)
	}
	return &Watcher{
		dir:     abs,
		glob:    glob,
		manager: manager,
		log:     log,
		fsw:     fsw,
		pend:    make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// Start sweeps the directory for artifacts already present, then
// follows filesystem events. Implements bootstrap.Startable via the
// server's entry wrapper.
func (w *Watcher) Start() error {
	if err := w.sweep(); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// sweep deploys every matching artifact already in the directory.
func (w *Watcher) sweep() error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, w.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !w.matches(p) {
			return nil
		}
		name := ModuleName(p)
		w.log.Info("artifact found on sweep",
			zap.String("module", name), zap.String("file", p))
		w.manager.Deploy(name, p)
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(ev.Name)
		name := ModuleName(ev.Name)
		w.log.Info("artifact removed", zap.String("module", name))
		w.manager.Undeploy(name)
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.schedule(ev.Name)
	}
}

// schedule arms (or re-arms) the debounce timer for one artifact.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pend[path]; ok {
		t.Reset(debounce)
		return
	}
	w.pend[path] = time.AfterFunc(debounce, func() {
		w.cancelPending(path)
		select {
		case <-w.done:
			return
		default:
		}
		w.apply(path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	if t, ok := w.pend[path]; ok {
		t.Stop()
		delete(w.pend, path)
	}
	w.mu.Unlock()
}

// apply deploys a new artifact or redeploys a known one.
func (w *Watcher) apply(path string) {
	name := ModuleName(path)
	for _, info := range w.manager.List() {
		if info.Name == name && info.State == types.StateDeployed {
			w.log.Info("artifact changed, redeploying", zap.String("module", name))
			w.manager.Redeploy(name)
			return
		}
	}
	w.log.Info("artifact appeared, deploying",
		zap.String("module", name), zap.String("file", path))
	w.manager.Deploy(name, path)
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.glob, filepath.ToSlash(rel))
	return err == nil && ok
}

// Stop halts event processing. Implements bootstrap.Stoppable.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.mu.Lock()
		for path, t := range w.pend {
			t.Stop()
			delete(w.pend, path)
		}
		w.mu.Unlock()
	})
	return err
}

// ModuleName derives the module name from an artifact path: the base
// name with descriptor and compression extensions stripped.
func ModuleName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".toml", ".yaml", ".yml"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
