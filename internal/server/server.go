package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/box"
	"github.com/modforge/container/internal/config"
	httpapi "github.com/modforge/container/internal/http"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/middleware"
	"github.com/modforge/container/internal/module"
	"github.com/modforge/container/internal/monitoring"
	"github.com/modforge/container/internal/notify"
	"github.com/modforge/container/internal/systems/search"
	"github.com/modforge/container/internal/systems/store"
	"github.com/modforge/container/internal/tracing"
	"github.com/modforge/container/internal/types"
	"github.com/modforge/container/internal/watcher"
	"github.com/modforge/container/internal/ws"
	"go.uber.org/zap"
)

// System IDs in the running systems map. Modules receive the same map
// through their start capability, so the names are part of the
// container's contract.
const (
	SysConfig  = "config"
	SysMetrics = "metrics"
	SysTracer  = "tracer"
	SysNotify  = "notify"
	SysStore   = "store"
	SysHook    = "hook"
	SysBoxes   = "boxes"
	SysManager = "manager"
	SysSearch  = "search"
	SysStream  = "stream"
	SysWatcher = "watcher"
)

const shutdownGrace = 30 * time.Second

// Server assembles the container's backend systems and serves the
// management API.
type Server struct {
	conf *config.Config
	log  *logging.Logger
}

func New(conf *config.Config, log *logging.Logger) *Server {
	return &Server{conf: conf, log: log}
}

// Entries returns the backend systems in start order. Each entry sees
// every system started before it; teardown runs in exact reverse.
func (s *Server) Entries() []bootstrap.Entry {
	conf, log := s.conf, s.log

	entries := []bootstrap.Entry{
		{ID: SysConfig, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return conf, nil
		})},
		{ID: SysMetrics, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return monitoring.NewMetrics(), nil
		})},
		{ID: SysTracer, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return tracing.New("container", log.Named("tracing")), nil
		})},
		{ID: SysNotify, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return notify.NewBus(log.Named("notify")), nil
		})},
		{ID: SysStore, System: bootstrap.StartFunc(func(running bootstrap.Systems) (interface{}, error) {
			bus, err := requireBus(running)
			if err != nil {
				return nil, err
			}
			st, err := store.Open(conf.Store.Path, log.Named("store"))
			if err != nil {
				return nil, err
			}
			bus.Register("journal", st.Notifier())
			return st, nil
		})},
		{ID: SysHook, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return httpapi.NewHook(log.Named("hook")), nil
		})},
		{ID: SysBoxes, System: bootstrap.StartFunc(func(bootstrap.Systems) (interface{}, error) {
			return box.NewRemoteProvider(box.RemoteConfig{
				Address: conf.Boxd.Address,
				Retries: conf.Boxd.Retries,
			}, log.Named("boxes")), nil
		})},
		{ID: SysManager, System: bootstrap.StartFunc(func(running bootstrap.Systems) (interface{}, error) {
			bus, err := requireBus(running)
			if err != nil {
				return nil, err
			}
			hookSys, err := bootstrap.Require(running, SysHook)
			if err != nil {
				return nil, err
			}
			boxSys, err := bootstrap.Require(running, SysBoxes)
			if err != nil {
				return nil, err
			}
			metricsSys, err := bootstrap.Require(running, SysMetrics)
			if err != nil {
				return nil, err
			}
			metrics := metricsSys.(*monitoring.Metrics)
			m := module.NewManager(
				running,
				boxSys.(box.Provider),
				hookSys.(*httpapi.Hook),
				bus,
				conf,
				log.Named("manager"),
			).WithMetrics(metrics)
			// State gauges are sampled from a fresh goroutine: bus
			// callbacks run inside actor tasks and List would block
			// on the emitting actor.
			bus.Register("metrics", func(event types.Event, args []string) {
				metrics.RecordEvent(string(event))
				go func() {
					counts := make(map[types.State]int)
					for _, info := range m.List() {
						counts[info.State]++
					}
					for _, state := range []types.State{
						types.StateUndeployed, types.StateDeploying, types.StateDeployed,
						types.StateRedeploying, types.StateUndeploying,
					} {
						metrics.SetModuleState(string(state), float64(counts[state]))
					}
				}()
			})
			return m, nil
		})},
		{ID: SysSearch, System: bootstrap.StartFunc(func(running bootstrap.Systems) (interface{}, error) {
			managerSys, err := bootstrap.Require(running, SysManager)
			if err != nil {
				return nil, err
			}
			storeSys, err := bootstrap.Require(running, SysStore)
			if err != nil {
				return nil, err
			}
			return search.New(managerSys.(*module.Manager), storeSys.(*store.Store)), nil
		})},
		{ID: SysStream, System: bootstrap.StartFunc(func(running bootstrap.Systems) (interface{}, error) {
			bus, err := requireBus(running)
			if err != nil {
				return nil, err
			}
			metricsSys, err := bootstrap.Require(running, SysMetrics)
			if err != nil {
				return nil, err
			}
			hub := ws.NewHub(log.Named("stream")).WithMetrics(metricsSys.(*monitoring.Metrics))
			bus.Register("stream", hub.Notifier())
			return hub, nil
		})},
	}

	if conf.Watcher.Enabled {
		entries = append(entries, bootstrap.Entry{
			ID: SysWatcher,
			System: bootstrap.StartFunc(func(running bootstrap.Systems) (interface{}, error) {
				managerSys, err := bootstrap.Require(running, SysManager)
				if err != nil {
					return nil, err
				}
				w, err := watcher.New(conf.Watcher.Dir, conf.Watcher.Glob,
					managerSys.(*module.Manager), log.Named("watcher"))
				if err != nil {
					return nil, err
				}
				if err := w.Start(); err != nil {
					w.Stop()
					return nil, err
				}
				return w, nil
			}),
		})
	}

	return entries
}

// Router builds the management API over the running systems.
func (s *Server) Router(running bootstrap.Systems) (*gin.Engine, error) {
	manager, ok := running[SysManager].(*module.Manager)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bootstrap.ErrSystemMissing, SysManager)
	}
	hook, ok := running[SysHook].(*httpapi.Hook)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bootstrap.ErrSystemMissing, SysHook)
	}
	finder, _ := running[SysSearch].(*search.Search)
	hub, _ := running[SysStream].(*ws.Hub)
	metrics, _ := running[SysMetrics].(*monitoring.Metrics)
	tracer, _ := running[SysTracer].(*tracing.Tracer)

	if !s.conf.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.conf.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.conf.RateLimit.RequestsPerSecond,
			Burst:             s.conf.RateLimit.Burst,
		}))
	}
	if metrics != nil {
		router.Use(monitoring.Middleware(metrics))
	}
	if tracer != nil {
		router.Use(tracing.HTTPMiddleware(tracer))
	}

	handlers := httpapi.NewHandlers(manager, finder)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Lifecycle management
	router.GET("/modules", handlers.ListModules)
	router.POST("/modules/:name/deploy", handlers.DeployModule)
	router.POST("/modules/:name/undeploy", handlers.UndeployModule)
	router.POST("/modules/:name/redeploy", handlers.RedeployModule)
	router.DELETE("/modules/:name", handlers.KillModule)
	router.GET("/modules/:name/versions", handlers.ModuleVersions)

	// Event history and live stream
	router.GET("/events", handlers.ListEvents)
	if hub != nil {
		router.GET("/stream", hub.HandleConnection)
	}
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Module HTTP traffic
	router.Any("/modules/:name/http/*path", hook.Dispatch)

	return router, nil
}

// Run starts every backend system, serves the management API until a
// signal arrives, then tears everything down in reverse start order.
func (s *Server) Run() error {
	return bootstrap.Run(s.log, s.Entries(), func(running bootstrap.Systems) error {
		router, err := s.Router(running)
		if err != nil {
			return err
		}

		addr := s.conf.Server.Host + ":" + s.conf.Server.Port
		srv := &http.Server{Addr: addr, Handler: router}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
		s.log.Info("management api listening", zap.String("addr", addr))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			s.log.Info("shutting down", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

func requireBus(running bootstrap.Systems) (*notify.Bus, error) {
	sys, err := bootstrap.Require(running, SysNotify)
	if err != nil {
		return nil, err
	}
	return sys.(*notify.Bus), nil
}
