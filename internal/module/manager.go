package module

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/modforge/container/internal/actor"
	"github.com/modforge/container/internal/bootstrap"
	"github.com/modforge/container/internal/box"
	"github.com/modforge/container/internal/config"
	"github.com/modforge/container/internal/descriptor"
	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/monitoring"
	"github.com/modforge/container/internal/notify"
	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

// OpTimeout bounds each awaited sub-operation: the two redeploy stages
// and every per-module wait during shutdown.
const OpTimeout = 30 * time.Second

// HTTPHook is the registration capability invoked when a deployed
// module declares an HTTP handler.
type HTTPHook interface {
	RegisterHandler(name string, bx box.Box)
	UnregisterHandler(name string)
}

// Manager orchestrates module lifecycle: deploy, undeploy, redeploy,
// kill, listing, version inspection and lifecycle notifications. Every
// module-addressed operation returns a Future the caller may await;
// callers never block on box I/O.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*actor.Actor

	systems bootstrap.Systems
	boxes   box.Provider
	hook    HTTPHook
	bus     *notify.Bus
	conf    *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	opTimeout time.Duration
}

// NewManager creates a lifecycle manager over the running systems.
func NewManager(systems bootstrap.Systems, boxes box.Provider, hook HTTPHook, bus *notify.Bus, conf *config.Config, log *logging.Logger) *Manager {
	return &Manager{
		agents:    make(map[string]*actor.Actor),
		systems:   systems,
		boxes:     boxes,
		hook:      hook,
		bus:       bus,
		conf:      conf,
		log:       log,
		opTimeout: OpTimeout,
	}
}

// WithOpTimeout overrides the sub-operation timeout. Used in tests.
func (m *Manager) WithOpTimeout(d time.Duration) *Manager {
	m.opTimeout = d
	return m
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// List returns a snapshot of every known module, sorted by name. Every
// entry ever created by a deploy appears, whatever its current state.
func (m *Manager) List() []types.ModuleInfo {
	m.mu.RLock()
	infos := make([]types.ModuleInfo, 0, len(m.agents))
	for _, a := range m.agents {
		infos = append(infos, a.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RegisterNotifier subscribes a callback to lifecycle events. A later
// registration under the same name replaces the earlier one.
func (m *Manager) RegisterNotifier(name string, cb notify.Callback) {
	m.bus.Register(name, cb)
}

// UnregisterNotifier removes a subscriber.
func (m *Manager) UnregisterNotifier(name string) {
	m.bus.Unregister(name)
}

// Deploy loads the module artifact at file and starts the module in a
// fresh box. The registry entry is created lazily on first deploy. A
// deploy addressed to an already deployed module becomes a redeploy; a
// deploy during any transient state is rejected immediately.
func (m *Manager) Deploy(name, file string) *types.Future {
	a := m.agent(name, file)
	fut := types.NewFuture()
	accepted := a.Submit(func(mod *actor.Module) {
		switch mod.State {
		case types.StateUndeployed:
			m.beginDeploy(a, mod, file, fut)
		case types.StateDeployed:
			m.beginRedeploy(a, mod, fut)
		default:
			fut.Resolve(types.Fail("cannot deploy module %s while %s", name, mod.State))
		}
	})
	if !accepted {
		fut.Resolve(types.Fail("unknown module: %s", name))
	}
	return fut
}

// Undeploy stops the module's box and unregisters its HTTP handler.
func (m *Manager) Undeploy(name string) *types.Future {
	a := m.lookup(name)
	if a == nil {
		return types.Resolved(types.Fail("unknown module: %s", name))
	}
	fut := types.NewFuture()
	accepted := a.Submit(func(mod *actor.Module) {
		if mod.State != types.StateDeployed {
			fut.Resolve(types.Fail("cannot undeploy module %s while %s", name, mod.State))
			return
		}
		m.beginUndeploy(a, mod, fut)
	})
	if !accepted {
		fut.Resolve(types.Fail("unknown module: %s", name))
	}
	return fut
}

// Redeploy re-reads the module's remembered artifact and restarts it.
// On a deployed module this runs undeploy then deploy as two awaited
// sub-operations; each stage is bounded by OpTimeout and a timeout is
// reported distinctly from a failure since the underlying work is not
// cancelled. A redeploy issued while the module is already in a
// transient state is rejected, not queued.
func (m *Manager) Redeploy(name string) *types.Future {
	a := m.lookup(name)
	if a == nil {
		return types.Resolved(types.Fail("unknown module: %s", name))
	}
	fut := types.NewFuture()
	accepted := a.Submit(func(mod *actor.Module) {
		switch mod.State {
		case types.StateUndeployed:
			m.beginDeploy(a, mod, mod.File, fut)
		case types.StateDeployed:
			m.beginRedeploy(a, mod, fut)
		default:
			fut.Resolve(types.Fail("cannot redeploy module %s while %s", name, mod.State))
		}
	})
	if !accepted {
		fut.Resolve(types.Fail("unknown module: %s", name))
	}
	return fut
}

// Kill removes the module unconditionally, bypassing every state
// machine check: the registry entry is dropped, any HTTP handler is
// unregistered and the box is force-released. Unsafe with respect to
// in-flight operations; an escape hatch only.
func (m *Manager) Kill(name string) *types.Future {
	m.mu.Lock()
	a, ok := m.agents[name]
	if !ok {
		m.mu.Unlock()
		return types.Resolved(types.Fail("unknown module: %s", name))
	}
	delete(m.agents, name)
	m.mu.Unlock()

	a.Stop()
	snap := a.Snapshot()
	m.hook.UnregisterHandler(name)
	if snap.Box != nil {
		snap.Box.Release()
	}
	m.recordOp("kill", true)
	m.log.Warn("module killed", zap.String("module", name))
	return types.Resolved(types.OK("module %s killed", name))
}

// Shutdown undeploys every module not already undeployed, waiting up
// to OpTimeout per module, and re-scans until none remain outside
// undeployed. Slow or retried undeploys are tolerated; the loop only
// gives up when ctx is cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	for {
		var pending []string
		for _, info := range m.List() {
			if info.State != types.StateUndeployed {
				pending = append(pending, info.Name)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		for _, name := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, ok := m.Undeploy(name).Wait(m.opTimeout)
			switch {
			case !ok:
				m.log.Warn("shutdown undeploy timed out", zap.String("module", name))
			case !r.Success:
				m.log.Warn("shutdown undeploy failed",
					zap.String("module", name), zap.String("reason", r.Message))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Stop implements bootstrap.Stoppable.
func (m *Manager) Stop() error {
	return m.Shutdown(context.Background())
}

// beginDeploy runs inside the actor: flip to deploying, notify, and
// hand the slow work to a goroutine.
func (m *Manager) beginDeploy(a *actor.Actor, mod *actor.Module, file string, fut *types.Future) {
	mod.State = types.StateDeploying
	mod.File = file
	m.bus.Emit(types.EventDeploying, mod.Name)
	go m.startModule(a, mod.Name, file, fut)
}

// startModule performs the slow half of a deploy outside the actor.
func (m *Manager) startModule(a *actor.Actor, name, file string, fut *types.Future) {
	ctx := context.Background()
	fail := func(err error) {
		m.recordOp("deploy", false)
		accepted := a.Submit(func(mod *actor.Module) {
			mod.Box = nil
			mod.Desc = nil
			mod.StartResult = nil
			mod.State = types.StateUndeployed
			m.bus.Emit(types.EventFailed, name)
			fut.Resolve(types.Fail("deploy %s: %v", name, err))
		})
		if !accepted {
			fut.Resolve(types.Fail("deploy %s: %v", name, err))
		}
	}

	desc, err := descriptor.Load(file)
	if err != nil {
		fail(err)
		return
	}

	opts := box.Options{
		ResolveDependencies: m.conf.Modules.ResolveDependencies,
		IsolationPatterns:   m.conf.Modules.IsolationPatterns,
	}
	bx, err := m.boxes.Create(ctx, desc, opts, m.systems)
	if err != nil {
		fail(err)
		return
	}

	result, err := bx.CallStart(ctx, desc.StartCapability(), m.rootConfig(), m.systems)
	if err != nil {
		bx.Release()
		fail(err)
		return
	}

	if desc.HasHTTPHandler() {
		m.hook.RegisterHandler(name, bx)
	}

	accepted := a.Submit(func(mod *actor.Module) {
		mod.State = types.StateDeployed
		mod.Desc = desc
		mod.Box = bx
		mod.StartResult = result
		m.recordOp("deploy", true)
		m.bus.Emit(types.EventDeployed, name, file)
		fut.Resolve(types.OK("module %s deployed from %s", name, file))
	})
	if !accepted {
		// Killed while starting; don't leak the box.
		m.hook.UnregisterHandler(name)
		bx.Release()
		fut.Resolve(types.Fail("deploy %s: module was killed during startup", name))
	}
}

// beginUndeploy runs inside the actor: flip to undeploying, notify,
// and hand the slow work to a goroutine.
func (m *Manager) beginUndeploy(a *actor.Actor, mod *actor.Module, fut *types.Future) {
	mod.State = types.StateUndeploying
	m.bus.Emit(types.EventUndeploying, mod.Name)
	go m.stopModule(a, mod.Name, mod.Box, mod.Desc, mod.StartResult, fut)
}

// stopModule performs the slow half of an undeploy outside the actor.
// The handler is unregistered before the box stops so no request hits
// a dying module; the box is released on every path.
func (m *Manager) stopModule(a *actor.Actor, name string, bx box.Box, desc *descriptor.Descriptor, startResult interface{}, fut *types.Future) {
	ctx := context.Background()
	if desc != nil && desc.HasHTTPHandler() {
		m.hook.UnregisterHandler(name)
	}

	var stopErr error
	if bx != nil {
		stopErr = bx.CallStop(ctx, desc.StopCapability(), startResult)
		bx.Release()
	}

	accepted := a.Submit(func(mod *actor.Module) {
		mod.Box = nil
		mod.Desc = nil
		mod.StartResult = nil
		mod.State = types.StateUndeployed
		m.recordOp("undeploy", stopErr == nil)
		m.bus.Emit(types.EventUndeployed, name)
		if stopErr != nil {
			fut.Resolve(types.Fail("undeploy %s: %v", name, stopErr))
		} else {
			fut.Resolve(types.OK("module %s undeployed", name))
		}
	})
	if !accepted {
		fut.Resolve(types.OK("module %s undeployed", name))
	}
}

// beginRedeploy runs inside the actor against a deployed module. It
// fires the redeploying event, starts the undeploy stage immediately
// (so no foreign operation can slip between validation and the first
// stage) and lets a goroutine await the two stages.
func (m *Manager) beginRedeploy(a *actor.Actor, mod *actor.Module, fut *types.Future) {
	m.bus.Emit(types.EventRedeploying, mod.Name)
	undeployFut := types.NewFuture()
	name, file := mod.Name, mod.File
	m.beginUndeploy(a, mod, undeployFut)
	go m.finishRedeploy(a, name, file, undeployFut, fut)
}

// finishRedeploy awaits the undeploy stage, then runs and awaits the
// deploy stage. The three outcomes are reported distinctly: success,
// a stage timeout (the stage may still complete later), and a stage
// failure.
func (m *Manager) finishRedeploy(a *actor.Actor, name, file string, undeployFut, fut *types.Future) {
	r, ok := undeployFut.Wait(m.opTimeout)
	if !ok {
		m.recordOp("redeploy", false)
		fut.Resolve(types.Fail("redeploy %s: undeploy stage timed out after %s (it may still complete)", name, m.opTimeout))
		return
	}
	if !r.Success {
		m.recordOp("redeploy", false)
		fut.Resolve(types.Fail("redeploy %s: undeploy stage failed: %s", name, r.Message))
		return
	}

	deployFut := types.NewFuture()
	accepted := a.Submit(func(mod *actor.Module) {
		if mod.State != types.StateUndeployed {
			deployFut.Resolve(types.Fail("cannot deploy module %s while %s", name, mod.State))
			return
		}
		m.beginDeploy(a, mod, file, deployFut)
	})
	if !accepted {
		m.recordOp("redeploy", false)
		fut.Resolve(types.Fail("redeploy %s: module was killed mid-redeploy", name))
		return
	}

	r, ok = deployFut.Wait(m.opTimeout)
	switch {
	case !ok:
		m.recordOp("redeploy", false)
		fut.Resolve(types.Fail("redeploy %s: deploy stage timed out after %s (it may still complete)", name, m.opTimeout))
	case !r.Success:
		m.recordOp("redeploy", false)
		fut.Resolve(types.Fail("redeploy %s: deploy stage failed: %s", name, r.Message))
	default:
		m.recordOp("redeploy", true)
		fut.Resolve(types.OK("module %s redeployed", name))
	}
}

// agent returns the actor for name, creating it lazily with an
// undeployed record on first use.
func (m *Manager) agent(name, file string) *actor.Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[name]; ok {
		return a
	}
	a := actor.New(name, file, m.log.Named("module."+name))
	m.agents[name] = a
	return a
}

// lookup returns the actor for name or nil.
func (m *Manager) lookup(name string) *actor.Actor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agents[name]
}

// rootConfig builds the configuration value handed to module start
// capabilities.
func (m *Manager) rootConfig() map[string]interface{} {
	root := make(map[string]interface{})
	for _, section := range []string{"server", "modules", "boxd"} {
		if sec, ok := m.conf.Section(section); ok {
			root[section] = sec
		}
	}
	return root
}

func (m *Manager) recordOp(op string, success bool) {
	if m.metrics != nil {
		m.metrics.RecordLifecycleOp(op, success)
	}
}
