package component

import (
	"context"

	"github.com/airssys-go/platform/src/actor/core"
	"github.com/airssys-go/platform/src/actor/mailbox"
	"github.com/airssys-go/platform/src/actor/supervisor"
)

// dispatcher is the supervised unit actually registered with the
// application supervisor: it wraps a component's StateMachine together
// with the worker goroutine that drains its mailbox, implementing spec
// §5's "actors are tasks driven by the pool" — without it, envelopes the
// broker routes into a component's mailbox would queue forever.
//
// A dispatcher is recreated by the supervisor's Factory on every restart,
// but the mailbox and broker address registration outlive it; only the
// state machine (and the guest component behind it) are replaced.
type dispatcher struct {
	id  string
	sm  *core.StateMachine[Message, error]
	mb  mailbox.Mailbox[Message]
	sup *supervisor.SupervisorNode

	stop chan struct{}
	done chan struct{}
}

var _ supervisor.Child = (*dispatcher)(nil)

func newDispatcher(id string, actor core.Actor[Message, error], mb mailbox.Mailbox[Message], sup *supervisor.SupervisorNode) *dispatcher {
	return &dispatcher{
		id:  id,
		sm:  core.NewStateMachine[Message, error](actor, core.DefaultHookTimeout),
		mb:  mb,
		sup: sup,
	}
}

// Start runs the actor's PreStart/PostStart hooks, then launches the
// goroutine that drains the mailbox for as long as the actor is Running.
func (d *dispatcher) Start(ctx context.Context) error {
	if err := d.sm.Start(ctx); err != nil {
		return err
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(ctx)
	return nil
}

// run is the actor's message pump: receive an envelope, hand it to the
// state machine, and act on its verdict. A Continue loops back for the
// next envelope; Stop/Escalate end the pump and report the child's fate
// to the supervisor so it can apply the restart Strategy (spec §4.5).
// The supervisor call is made from a separate goroutine because the
// supervisor's own FailChild/RemoveChild will call back into d.Stop,
// which waits on d.done — calling it inline here would deadlock waiting
// on a goroutine that is itself blocked on the call returning.
func (d *dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		msg, err := d.mb.Recv(d.stop)
		if err != nil {
			return
		}
		action, _ := d.sm.Handle(ctx, msg)
		switch action {
		case core.Continue:
			continue
		case core.Stop:
			go func() { _ = d.sup.RemoveChild(d.id) }()
			return
		default: // Escalate
			go func() { _ = d.sup.FailChild(context.Background(), d.id, supervisor.ExitAbnormal) }()
			return
		}
	}
}

// Stop signals the pump to exit, waits for it, then runs PreStop/PostStop.
func (d *dispatcher) Stop(ctx context.Context) {
	if d.stop != nil {
		select {
		case <-d.stop:
		default:
			close(d.stop)
		}
	}
	if d.done != nil {
		<-d.done
	}
	d.sm.Stop(ctx)
}
