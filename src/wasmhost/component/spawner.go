package component

import (
	"context"
	"fmt"
	"time"

	"github.com/airssys-go/platform/src/actor/broker"
	"github.com/airssys-go/platform/src/actor/mailbox"
	"github.com/airssys-go/platform/src/actor/supervisor"
	"github.com/airssys-go/platform/src/wasmhost/capability"
	"github.com/airssys-go/platform/src/wasmhost/engine"
	"github.com/airssys-go/platform/src/wasmhost/metadata"
)

// RequiredExports are the guest exports spec §6 says the host relies on;
// "initialize"/"handle-callback"/"shutdown"/"health" are optional and
// probed for at call time (see Actor.hasExport).
var RequiredExports = []string{"handle-message", "metadata"}

// Spawner orchestrates bringing one component fully online: load bytes,
// validate metadata, register capabilities, construct the actor, register
// it with the supervisor, and register its mailbox sender with the
// broker. A failure at any step rolls back every earlier step in reverse
// order (spec §4.8).
type Spawner struct {
	Engine     *engine.Engine
	Broker     *broker.Broker[[]byte]
	Caps       *capability.Table
	Supervisor *supervisor.SupervisorNode
}

// Spawned is everything the caller needs to address and manage a freshly
// spawned component.
type Spawned struct {
	ID      string
	Mailbox mailbox.Mailbox[Message]
}

// mailboxSender adapts a mailbox.Mailbox[Message] to broker.Sender[[]byte];
// Message is an alias of broker.Envelope[[]byte], so the envelope is
// enqueued unchanged.
type mailboxSender struct {
	mb mailbox.Mailbox[Message]
	id string
}

func (s mailboxSender) Send(env broker.Envelope[[]byte]) error {
	return s.mb.Send(env)
}

// Spawn executes the full sequence of spec §4.8, undoing every completed
// step if a later one fails.
func (s *Spawner) Spawn(ctx context.Context, id string, wasmBytes []byte, meta *metadata.ComponentMetadata, initCfg []byte) (*Spawned, error) {
	var rollbacks []func()
	rollback := func() {
		for i := len(rollbacks) - 1; i >= 0; i-- {
			rollbacks[i]()
		}
	}

	limits := engine.ResourceLimits{
		MaxMemoryBytes: meta.Resources.Memory.MaxBytes,
		MaxFuel:        meta.Resources.CPU.MaxFuel,
		Timeout:        time.Duration(meta.Resources.CPU.TimeoutSeconds) * time.Second,
	}

	handle, err := s.Engine.LoadComponent(ctx, id, wasmBytes, RequiredExports, limits)
	if err != nil {
		return nil, fmt.Errorf("loading component %s: %w", id, err)
	}
	rollbacks = append(rollbacks, func() { _ = handle.Close(context.Background()) })

	for _, cap := range meta.RequiredCapabilities {
		s.Caps.Grant(id, capability.Grant{Kind: capability.Kind(cap.Kind), Pattern: cap.Pattern})
	}
	rollbacks = append(rollbacks, func() { s.Caps.RevokeAll(id) })

	actor := NewActor(id, s.Engine, handle, s.Broker, initCfg)

	mb := mailbox.NewBoundedMailbox[Message](256, mailbox.Error)
	rollbacks = append(rollbacks, func() { mb.Close() })

	spec := supervisor.ChildSpec{
		ID:             id,
		RestartPolicy:  supervisor.Permanent,
		ShutdownPolicy: supervisor.GracefulShutdown(time.Duration(meta.Resources.CPU.TimeoutSeconds) * time.Second),
		StartTimeout:   supervisor.DefaultStartTimeout,
		Factory: func() supervisor.Child {
			return newDispatcher(id, actor, mb, s.Supervisor)
		},
	}

	if err := s.Supervisor.AddChild(ctx, spec); err != nil {
		rollback()
		return nil, fmt.Errorf("registering component %s with supervisor: %w", id, err)
	}
	rollbacks = append(rollbacks, func() {
		_ = s.Supervisor.RemoveChild(id)
	})

	s.Broker.Register(id, mailboxSender{mb: mb, id: id})

	return &Spawned{ID: id, Mailbox: mb}, nil
}

// Despawn reverses registration: removes the broker address, revokes
// every capability grant, and stops the supervised child.
func (s *Spawner) Despawn(ctx context.Context, id string) {
	s.Broker.Deregister(id)
	s.Caps.RevokeAll(id)
	_ = s.Supervisor.RemoveChild(id)
}
