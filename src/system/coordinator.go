// Package system is the composition root (spec §9): it assembles the
// concrete OSL, actor, and WASM-host implementations into the
// RootSupervisor -> OSLSupervisor + ApplicationSupervisor hierarchy and
// exposes the operations a host application needs (spawn/stop/shutdown).
package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/airssys-go/platform/src/actor/broker"
	"github.com/airssys-go/platform/src/actor/supervisor"
	"github.com/airssys-go/platform/src/osl/audit"
	"github.com/airssys-go/platform/src/osl/executors"
	"github.com/airssys-go/platform/src/osl/middleware"
	"github.com/airssys-go/platform/src/osl/policy"
	"github.com/airssys-go/platform/src/wasmhost/bridge"
	"github.com/airssys-go/platform/src/wasmhost/capability"
	"github.com/airssys-go/platform/src/wasmhost/component"
	"github.com/airssys-go/platform/src/wasmhost/engine"
	"github.com/airssys-go/platform/src/wasmhost/metadata"
	"github.com/airssys-go/platform/src/wasmhost/ratelimit"
	"github.com/airssys-go/platform/src/wasmhost/storage"
)

// oslChild is a named placeholder satisfying the supervisor.Child contract
// for an OSL subsystem; it holds no executor or pipeline. OSL executors have no long-running lifecycle
// of their own, so Start/Stop are no-ops beyond bookkeeping — they exist
// purely so the filesystem/process/network actors have a supervised slot
// alongside component actors in the tree (spec §4.5 hierarchy).
type oslChild struct {
	name string
	log  *slog.Logger
}

func (c *oslChild) Start(context.Context) error {
	c.log.Info("osl actor starting", "name", c.name)
	return nil
}

func (c *oslChild) Stop(context.Context) {
	c.log.Info("osl actor stopping", "name", c.name)
}

// System is the runtime composition root: one message broker, one
// capability table, one rate limiter, one storage backend, one WASM
// engine, and a two-level supervision tree (OSLSupervisor for the
// filesystem/process/network actors, ApplicationSupervisor for WASM
// components), both children of a RootSupervisor.
type System struct {
	log *slog.Logger

	Broker     *broker.Broker[[]byte]
	Caps       *capability.Table
	Limiter    *ratelimit.Limiter
	Storage    storage.Backend
	AuditSink  audit.Sink
	Engine     *engine.Engine
	Policy     *policy.Composed
	Bridge     *bridge.Bridge
	Pipeline   *middleware.Pipeline
	FSExecutor *executors.FilesystemExecutor

	RootSupervisor        *supervisor.SupervisorNode
	OSLSupervisor         *supervisor.SupervisorNode
	ApplicationSupervisor *supervisor.SupervisorNode
	spawner               *component.Spawner
}

// Config bundles the knobs a host application sets when bringing a
// System up; zero values fall back to the spec's documented defaults.
type Config struct {
	Logger             *slog.Logger
	Policy             policy.Policy
	AuditSink          audit.Sink
	StorageBackend     storage.Backend
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxTrackedSenders  int
}

// New assembles a System per Config, wiring every subsystem together and
// standing up the supervision hierarchy (spec §2.5, §4.5).
func New(ctx context.Context, cfg Config) (*System, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	}
	log = log.With("context", "system")

	sink := cfg.AuditSink
	if sink == nil {
		sink = audit.NewRingBuffer(1024)
	}

	store := cfg.StorageBackend
	if store == nil {
		store = storage.NewInMemory()
	}

	perSecond := cfg.RateLimitPerSecond
	if perSecond <= 0 {
		perSecond = 100
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 50
	}
	maxTracked := cfg.MaxTrackedSenders
	if maxTracked <= 0 {
		maxTracked = 4096
	}

	brk := broker.New[[]byte]()
	caps := capability.NewTable()
	limiter := ratelimit.New(perSecond, burst, maxTracked)
	eng := engine.New(ctx)

	composed := policy.NewComposed()
	if cfg.Policy != nil {
		composed = policy.NewComposed(cfg.Policy)
	}

	brg := bridge.New(caps, limiter, brk, store, sink)

	sec := middleware.NewSecurityMiddleware(composed, sink, middleware.Enforce, nil)
	logMw := middleware.NewLoggerMiddleware(log)
	pipeline := middleware.NewPipeline().Add(sec).Add(logMw)

	fsExec := executors.NewFilesystemExecutor("system")

	// root is declared before its children so their escalation callbacks
	// can close over it and call FailChild — the sub-supervisors must
	// exist before root.AddChild can register them, but their escalation
	// path must in turn reach root, hence the forward declaration.
	var root *supervisor.SupervisorNode

	oslSup := supervisor.NewSupervisorNode(supervisor.OneForOne, log, func(reason error) {
		log.Error("osl supervisor escalated to root", "reason", reason)
		if root != nil {
			_ = root.FailChild(ctx, "osl-supervisor", supervisor.ExitAbnormal)
		}
	}, 0)

	appSup := supervisor.NewSupervisorNode(supervisor.OneForOne, log, func(reason error) {
		log.Error("application supervisor escalated to root", "reason", reason)
		if root != nil {
			_ = root.FailChild(ctx, "application-supervisor", supervisor.ExitAbnormal)
		}
	}, 3)

	root = supervisor.NewSupervisorNode(supervisor.OneForAll, log, func(reason error) {
		log.Error("root supervisor escalation: initiating system shutdown", "reason", reason)
		oslSup.StopAll()
		appSup.StopAll()
	}, 0)

	for _, child := range []struct {
		id  string
		sup *supervisor.SupervisorNode
	}{
		{"osl-supervisor", oslSup},
		{"application-supervisor", appSup},
	} {
		sup := child.sup
		if err := root.AddChild(ctx, supervisor.ChildSpec{
			ID:             child.id,
			RestartPolicy:  supervisor.Permanent,
			ShutdownPolicy: supervisor.GracefulShutdown(10 * time.Second),
			StartTimeout:   supervisor.DefaultStartTimeout,
			Factory:        func() supervisor.Child { return sup },
		}); err != nil {
			return nil, fmt.Errorf("registering %s with root supervisor: %w", child.id, err)
		}
	}

	sys := &System{
		log:                   log,
		Broker:                brk,
		Caps:                  caps,
		Limiter:               limiter,
		Storage:               store,
		AuditSink:             sink,
		Engine:                eng,
		Policy:                composed,
		Bridge:                brg,
		Pipeline:              pipeline,
		FSExecutor:            fsExec,
		RootSupervisor:        root,
		OSLSupervisor:         oslSup,
		ApplicationSupervisor: appSup,
	}

	for _, name := range []string{"filesystem", "process", "network"} {
		name := name
		spec := supervisor.ChildSpec{
			ID:             "osl-" + name,
			RestartPolicy:  supervisor.Permanent,
			ShutdownPolicy: supervisor.GracefulShutdown(5 * time.Second),
			StartTimeout:   supervisor.DefaultStartTimeout,
			Factory: func() supervisor.Child {
				return &oslChild{name: name, log: log}
			},
		}
		if err := oslSup.AddChild(ctx, spec); err != nil {
			return nil, fmt.Errorf("starting OSL actor %s: %w", name, err)
		}
	}

	sys.spawner = &component.Spawner{Engine: eng, Broker: brk, Caps: caps, Supervisor: appSup}

	return sys, nil
}

// SpawnComponent brings one WASM component fully online: load, validate,
// grant capabilities, construct its actor, and register it with the
// application supervisor and broker (spec §4.8).
func (s *System) SpawnComponent(ctx context.Context, id string, wasmBytes []byte, meta *metadata.ComponentMetadata, initCfg []byte) (*component.Spawned, error) {
	return s.spawner.Spawn(ctx, id, wasmBytes, meta, initCfg)
}

// StopComponent despawns a previously spawned component, reversing its
// broker/capability/supervisor registrations.
func (s *System) StopComponent(ctx context.Context, id string) {
	s.spawner.Despawn(ctx, id)
}

// Shutdown gracefully stops the root supervisor, which in turn stops the
// OSL and application supervisors and every actor beneath them.
func (s *System) Shutdown(ctx context.Context) {
	s.RootSupervisor.Stop(ctx)
	s.log.Info("system shutdown complete")
}
