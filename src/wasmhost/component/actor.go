// Package component implements the component actor and spawner of spec
// §4.8: the bridge between the actor core and the WASM engine, and the
// rollback-safe orchestration that brings a component fully online.
package component

import (
	"context"
	"fmt"

	"github.com/airssys-go/platform/src/actor/broker"
	"github.com/airssys-go/platform/src/actor/core"
	"github.com/airssys-go/platform/src/wasmhost/codec"
	"github.com/airssys-go/platform/src/wasmhost/engine"
)

// Message is the envelope payload a component actor processes: an
// already-routed broker envelope carrying a multicodec-prefixed payload.
type Message = broker.Envelope[[]byte]

// Actor bridges actor/core's lifecycle state machine to a loaded WASM
// component (spec §4.8). Its HandleMessage invokes the guest's
// handle-message export with the envelope's payload bytes untouched and
// hands the guest's response to Broker.Resolve when the envelope carried a
// correlation id.
type Actor struct {
	id      string
	eng     *engine.Engine
	handle  *engine.Handle
	brk     *broker.Broker[[]byte]
	initCfg []byte
}

var _ core.Actor[Message, error] = (*Actor)(nil)

// NewActor constructs a component actor for an already-loaded handle.
// initCfg is passed verbatim to the guest's initialize export.
func NewActor(id string, eng *engine.Engine, handle *engine.Handle, brk *broker.Broker[[]byte], initCfg []byte) *Actor {
	return &Actor{id: id, eng: eng, handle: handle, brk: brk, initCfg: initCfg}
}

func (a *Actor) hasExport(name string) bool {
	for _, n := range a.handle.ExportNames() {
		if n == name {
			return true
		}
	}
	return false
}

// PreStart calls the guest's initialize export, if present.
func (a *Actor) PreStart(ctx context.Context) error {
	if !a.hasExport("initialize") {
		return nil
	}
	if _, err := a.eng.Execute(ctx, a.handle, "initialize", a.initCfg); err != nil {
		return fmt.Errorf("initializing component %s: %w", a.id, err)
	}
	return nil
}

func (a *Actor) PostStart(context.Context) {}

// HandleMessage routes to handle-message for a fresh request, or to
// handle-callback when msg.CorrelationID names an outstanding request
// this component itself issued (spec §4.8, §6). The guest's response, if
// any, is passed to Broker.Resolve under msg.CorrelationID, which delivers
// it to the requester waiting on that id.
func (a *Actor) HandleMessage(ctx context.Context, msg Message) (core.ErrorAction, error) {
	export := "handle-message"
	if msg.CorrelationID != "" && a.hasExport("handle-callback") {
		export = "handle-callback"
	}

	out, err := a.eng.Execute(ctx, a.handle, export, msg.Payload)
	if err != nil {
		return core.Escalate, fmt.Errorf("component %s %s: %w", a.id, export, err)
	}

	if len(out) > 0 && msg.CorrelationID != "" {
		a.brk.Resolve(msg.CorrelationID, out)
	}
	return core.Continue, nil
}

// PreStop calls the guest's shutdown export, if present, giving it a
// chance to release its own resources before the store is dropped.
func (a *Actor) PreStop(ctx context.Context) {
	if a.hasExport("shutdown") {
		_, _ = a.eng.Execute(ctx, a.handle, "shutdown", nil)
	}
}

// PostStop drops the component's dedicated runtime, releasing every
// resource the guest held (spec §4.6: crash/stop isolation).
func (a *Actor) PostStop(context.Context) {
	_ = a.handle.Close(context.Background())
}

// Health invokes the guest's health export, if present, and decodes its
// multicodec-prefixed response into a status string (Healthy / Degraded /
// Unhealthy) for the supervisor's health monitor (spec §4.5).
func (a *Actor) Health(ctx context.Context) (string, error) {
	if !a.hasExport("health") {
		return "Healthy", nil
	}
	out, err := a.eng.Execute(ctx, a.handle, "health", nil)
	if err != nil {
		return "", err
	}
	var status string
	if err := codec.Decode(out, &status); err != nil {
		return "", fmt.Errorf("decoding health status: %w", err)
	}
	return status, nil
}
