// Package core implements the actor contract and state machine of spec
// §4.3: a single-threaded message processor with lifecycle hooks bounded
// by per-hook timeouts, and a finite set of observable states.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/eapache/go-resiliency/deadline"
)

// ErrorAction is the actor's verdict after handling a message, consumed by
// its supervisor to decide whether/how to restart it.
type ErrorAction int

const (
	Continue ErrorAction = iota
	Stop
	Escalate
)

func (a ErrorAction) String() string {
	switch a {
	case Stop:
		return "Stop"
	case Escalate:
		return "Escalate"
	default:
		return "Continue"
	}
}

// State is one of the actor's finite lifecycle states.
type State int

const (
	Created State = iota
	Starting
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Created"
	}
}

// Event is emitted on every state transition.
type Event struct {
	From State
	To   State
	At   time.Time
}

// EventCallback receives every actor state transition.
type EventCallback func(Event)

// Actor is the generic message-processing contract. M is the message type,
// E the actor's own error type (surfaced from HandleMessage for logging /
// diagnostics; supervision itself only consumes ErrorAction).
type Actor[M any, E any] interface {
	PreStart(ctx context.Context) error
	PostStart(ctx context.Context)
	HandleMessage(ctx context.Context, msg M) (ErrorAction, E)
	PreStop(ctx context.Context)
	PostStop(ctx context.Context)
}

// DefaultHookTimeout bounds the duration of a single lifecycle hook
// invocation. A hook that blocks past the deadline, or that panics, is
// reported as an error instead — the state machine never wedges on a
// misbehaving actor.
const DefaultHookTimeout = 5 * time.Second

// StateMachine drives an Actor through Created -> Starting -> Running ->
// Stopping -> Stopped|Failed, emitting Event callbacks on every transition
// and guarding each lifecycle hook with a deadline.
type StateMachine[M any, E any] struct {
	actor       Actor[M, E]
	state       State
	hookTimeout time.Duration
	callbacks   []EventCallback
}

func NewStateMachine[M any, E any](actor Actor[M, E], hookTimeout time.Duration) *StateMachine[M, E] {
	if hookTimeout <= 0 {
		hookTimeout = DefaultHookTimeout
	}
	return &StateMachine[M, E]{actor: actor, state: Created, hookTimeout: hookTimeout}
}

func (sm *StateMachine[M, E]) OnEvent(cb EventCallback) {
	sm.callbacks = append(sm.callbacks, cb)
}

func (sm *StateMachine[M, E]) State() State { return sm.state }

func (sm *StateMachine[M, E]) transition(to State) {
	from := sm.state
	sm.state = to
	ev := Event{From: from, To: to, At: time.Now()}
	for _, cb := range sm.callbacks {
		cb(ev)
	}
}

// runHook executes fn under a deadline, converting a timeout or panic into
// an error so the caller can escalate rather than hang or crash the host
// process (spec §4.3: "a hook that panics is caught and converted to an
// Escalate").
func runHook(timeout time.Duration, fn func()) (err error) {
	d := deadline.New(timeout)
	runErr := d.Run(func(stopper <-chan struct{}) error {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("hook panicked: %v", r)
			}
		}()
		fn()
		return nil
	})
	if err != nil {
		return err
	}
	if runErr == deadline.ErrTimedOut {
		return fmt.Errorf("hook exceeded timeout of %s", timeout)
	}
	return runErr
}

// Start drives Created -> Starting -> Running, calling PreStart then
// PostStart. A PreStart error or panic transitions to Failed instead.
func (sm *StateMachine[M, E]) Start(ctx context.Context) error {
	sm.transition(Starting)

	var preErr error
	hookErr := runHook(sm.hookTimeout, func() {
		preErr = sm.actor.PreStart(ctx)
	})
	if hookErr != nil {
		sm.transition(Failed)
		return hookErr
	}
	if preErr != nil {
		sm.transition(Failed)
		return preErr
	}

	sm.transition(Running)

	_ = runHook(sm.hookTimeout, func() {
		sm.actor.PostStart(ctx)
	})
	return nil
}

// Handle processes one message while Running, returning the actor's
// ErrorAction verdict for the supervisor to act on.
func (sm *StateMachine[M, E]) Handle(ctx context.Context, msg M) (ErrorAction, E) {
	return sm.actor.HandleMessage(ctx, msg)
}

// Stop drives Running -> Stopping -> Stopped, calling PreStop then PostStop.
func (sm *StateMachine[M, E]) Stop(ctx context.Context) {
	sm.transition(Stopping)
	_ = runHook(sm.hookTimeout, func() {
		sm.actor.PreStop(ctx)
	})
	sm.transition(Stopped)
	_ = runHook(sm.hookTimeout, func() {
		sm.actor.PostStop(ctx)
	})
}

// Fail force-transitions to Failed, used when the supervisor decides the
// actor is unrecoverable.
func (sm *StateMachine[M, E]) Fail() {
	sm.transition(Failed)
}
