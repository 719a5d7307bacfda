// Package engine wraps wazero to implement the WASM runtime contracts of
// spec §4.6: component loading, per-call stores with enforced resource
// limits, crash isolation, and typed engine errors.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/airssys-go/platform/src/osl/oserr"
)

const wasmPageSize = 64 * 1024

// ResourceLimits bounds a single component's runtime and every call made
// into it (spec §4.6, §6).
type ResourceLimits struct {
	MaxMemoryBytes uint64
	MaxFuel        uint64
	Timeout        time.Duration
}

// Handle is an immutable reference to one loaded, validated component.
// Each Handle owns a dedicated wazero.Runtime so its memory ceiling
// (configured once, at runtime-construction time per wazero's API) never
// leaks into any other component — mirroring the teacher's one-runtime-
// per-module convention, generalized to many concurrently loaded
// components instead of one process-lifetime module.
type Handle struct {
	ID     string
	rt     wazero.Runtime
	module wazero.CompiledModule
	limits ResourceLimits
}

// ExportNames lists the guest exports discovered on the compiled module.
func (h *Handle) ExportNames() []string {
	names := make([]string, 0, len(h.module.ExportedFunctions()))
	for name := range h.module.ExportedFunctions() {
		names = append(names, name)
	}
	return names
}

// Close releases the component's dedicated runtime and compiled module.
func (h *Handle) Close(ctx context.Context) error {
	return h.rt.Close(ctx)
}

// Engine loads components and runs their guest exports under enforced
// resource limits.
type Engine struct {
	ctx context.Context
}

// New constructs an Engine holding ctx. The stored context is not read by
// the engine: LoadComponent compiles under the context passed to it, and
// Execute derives its own timeout-bound context from its argument.
func New(ctx context.Context) *Engine {
	return &Engine{ctx: ctx}
}

// LoadComponent compiles wasmBytes into a dedicated runtime sized by
// limits.MaxMemoryBytes, validates requiredExports are present, and
// returns an immutable Handle (spec §4.6 load_component).
func (e *Engine) LoadComponent(ctx context.Context, id string, wasmBytes []byte, requiredExports []string, limits ResourceLimits) (*Handle, error) {
	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if limits.MaxMemoryBytes > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(MemoryPages(limits.MaxMemoryBytes))
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiating WASI for component %s: %w", id, err)
	}

	mod, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindInvalidOperation, "compiling component", err)
	}

	exported := mod.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exported[name]; !ok {
			_ = rt.Close(ctx)
			return nil, oserr.New(oserr.CategoryExecution, oserr.KindInvalidOperation,
				fmt.Sprintf("component %s missing required export %q", id, name))
		}
	}

	return &Handle{ID: id, rt: rt, module: mod, limits: limits}, nil
}

// fuelListenerFactory counts guest function invocations as a fuel proxy —
// wazero has no native instruction-level fuel metering — and cancels the
// call's context once the budget is exhausted. Combined with
// WithCloseOnContextDone(true) on the component's runtime, this aborts
// the running call instead of letting it spin unbounded.
type fuelListenerFactory struct {
	max    uint64
	used   uint64
	cancel context.CancelFunc
}

func (f *fuelListenerFactory) NewListener(api.FunctionDefinition) experimental.FunctionListener {
	return &fuelListener{factory: f}
}

type fuelListener struct {
	factory *fuelListenerFactory
}

func (l *fuelListener) Before(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	l.factory.used++
	if l.factory.used > l.factory.max {
		l.factory.cancel()
	}
}

func (l *fuelListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}

// Execute instantiates handle into a fresh per-call store, runs export
// with input, and always tears the store down afterward — crashed or
// clean, partial guest effects never survive past one call (spec §4.6).
func (e *Engine) Execute(ctx context.Context, handle *Handle, export string, input []byte) ([]byte, error) {
	timeout := handle.limits.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if handle.limits.MaxFuel > 0 {
		callCtx = experimental.WithFunctionListenerFactory(callCtx, &fuelListenerFactory{
			max: handle.limits.MaxFuel, cancel: cancel,
		})
	}

	cfg := wazero.NewModuleConfig()

	mod, err := handle.rt.InstantiateModule(callCtx, handle.module, cfg)
	if err != nil {
		return nil, classifyError(callCtx, "instantiating component", err)
	}
	defer func() { _ = mod.Close(context.Background()) }()

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return nil, oserr.New(oserr.CategoryExecution, oserr.KindInvalidOperation, fmt.Sprintf("export %q not found", export))
	}

	region, ok := writeInput(mod, input)
	if !ok {
		return nil, oserr.New(oserr.CategoryExecution, oserr.KindInvalidOperation, "failed writing input to guest memory")
	}

	results, err := fn.Call(callCtx, uint64(region.ptr), uint64(region.size))
	if err != nil {
		return nil, classifyError(callCtx, "guest execution trapped", err)
	}
	return readOutput(mod, results)
}

// classifyError translates a wazero failure into the typed engine errors
// spec §4.6 requires, distinguishing a timeout/fuel-exhaustion abort
// (context canceled) from every other guest trap (divide-by-zero,
// out-of-bounds access, unreachable, stack overflow, ...).
func classifyError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return oserr.New(oserr.CategoryExecution, oserr.KindTimeout, msg+": timed out or exhausted its fuel budget")
	}
	return oserr.Wrap(oserr.CategoryExecution, oserr.KindWasmTrap, msg, err)
}

// memRegion is a (pointer, size) pair into a module's linear memory.
type memRegion struct {
	ptr, size uint32
}

// writeInput copies data into the guest's memory, using its exported
// "alloc" function when present (the documented contract for guests that
// manage their own heap), or a fixed scratch offset for minimal guests
// with no allocator export.
func writeInput(mod api.Module, data []byte) (memRegion, bool) {
	mem := mod.Memory()
	if mem == nil {
		return memRegion{}, len(data) == 0
	}
	if alloc := mod.ExportedFunction("alloc"); alloc != nil {
		res, err := alloc.Call(context.Background(), uint64(len(data)))
		if err != nil || len(res) == 0 {
			return memRegion{}, false
		}
		ptr := uint32(res[0])
		if !mem.Write(ptr, data) {
			return memRegion{}, false
		}
		return memRegion{ptr: ptr, size: uint32(len(data))}, true
	}
	const scratchOffset = 1024
	if !mem.Write(scratchOffset, data) {
		return memRegion{}, false
	}
	return memRegion{ptr: scratchOffset, size: uint32(len(data))}, true
}

// readOutput interprets the guest export's (ptr, size) result as a memory
// region and copies it out before the store is dropped.
func readOutput(mod api.Module, results []uint64) ([]byte, error) {
	var ptr, size uint32
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		ptr, size = uint32(results[0]>>32), uint32(results[0])
	default:
		ptr, size = uint32(results[0]), uint32(results[1])
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, nil
	}
	out, ok := mem.Read(ptr, size)
	if !ok {
		return nil, oserr.New(oserr.CategoryExecution, oserr.KindWasmTrap, "guest returned an invalid memory region")
	}
	return append([]byte(nil), out...), nil
}

// MemoryPages converts a byte ceiling into wazero's page-granular limit,
// rounding up so the configured ceiling is never silently loosened.
func MemoryPages(maxBytes uint64) uint32 {
	pages := maxBytes / wasmPageSize
	if maxBytes%wasmPageSize != 0 {
		pages++
	}
	return uint32(pages)
}
