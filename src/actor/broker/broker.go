// Package broker implements the message routing infrastructure of spec §3:
// a concurrent address -> mailbox registry, topic-pattern subscriptions,
// and request/response correlation tracking. Actors never see the broker
// directly; it is infrastructure owned by the supervision tree.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/airssys-go/platform/src/actor/mailbox"
	"github.com/airssys-go/platform/src/common/pattern"
)

// Envelope wraps a message with routing metadata.
type Envelope[M any] struct {
	ID            string
	Sender        string
	Recipient     string // exact address delivery; empty when Topic is used
	Topic         string // pattern-matched fan-out delivery
	CorrelationID string
	Payload       M
	SentAt        time.Time
}

// NewEnvelope stamps a fresh ID and timestamp on an outgoing message.
func NewEnvelope[M any](sender, recipient string, payload M) Envelope[M] {
	return Envelope[M]{ID: uuid.NewString(), Sender: sender, Recipient: recipient, Payload: payload, SentAt: time.Now()}
}

// Sender is the narrow interface the broker needs to deliver into a
// registered actor's mailbox, satisfied by mailbox.Mailbox[Envelope[M]].
type Sender[M any] interface {
	Send(Envelope[M]) error
}

// Broker is a concurrent address/topic routing table plus a request/response
// correlation tracker. One Broker instance serves one message type M;
// multiple brokers can coexist for different subsystems.
type Broker[M any] struct {
	mu          sync.RWMutex
	addresses   map[string]Sender[M]
	subscribers map[string]map[string]Sender[M] // pattern -> subscriberID -> sender
	correlation *correlationTracker[M]
}

func New[M any]() *Broker[M] {
	return &Broker[M]{
		addresses:   make(map[string]Sender[M]),
		subscribers: make(map[string]map[string]Sender[M]),
		correlation: newCorrelationTracker[M](),
	}
}

// Register binds an address to the mailbox sender that will receive
// point-to-point envelopes addressed to it.
func (b *Broker[M]) Register(address string, sender Sender[M]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[address] = sender
}

// Deregister removes an address from the routing table, e.g. on actor
// termination.
func (b *Broker[M]) Deregister(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.addresses, address)
}

// Subscribe registers sender to receive every envelope whose Topic matches
// the given pattern (see common/pattern for the matching rules).
func (b *Broker[M]) Subscribe(subscriberID, topicPattern string, sender Sender[M]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subscribers[topicPattern]
	if !ok {
		set = make(map[string]Sender[M])
		b.subscribers[topicPattern] = set
	}
	set[subscriberID] = sender
}

// Unsubscribe removes a single subscriber from a topic pattern.
func (b *Broker[M]) Unsubscribe(subscriberID, topicPattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subscribers[topicPattern]; ok {
		delete(set, subscriberID)
		if len(set) == 0 {
			delete(b.subscribers, topicPattern)
		}
	}
}

// Send delivers env to its Recipient address. Returns an error if the
// address is unknown or the mailbox refuses the message (full, closed).
func (b *Broker[M]) Send(env Envelope[M]) error {
	b.mu.RLock()
	sender, ok := b.addresses[env.Recipient]
	b.mu.RUnlock()
	if !ok {
		return ErrNoSuchAddress
	}
	return sender.Send(env)
}

// Publish fan-outs env to every subscriber whose pattern matches env.Topic.
// Individual subscriber delivery failures (full/closed mailboxes) do not
// abort delivery to the remaining subscribers; Publish returns the first
// error encountered, if any, after all deliveries have been attempted.
func (b *Broker[M]) Publish(ctx context.Context, env Envelope[M]) error {
	b.mu.RLock()
	var targets []Sender[M]
	for p, set := range b.subscribers {
		if pattern.Match(p, env.Topic) {
			for _, sender := range set {
				targets = append(targets, sender)
			}
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	for _, sender := range targets {
		sender := sender
		g.Go(func() error {
			return sender.Send(env)
		})
	}
	return g.Wait()
}

// Request sends env and registers a correlation waiter for a single
// matching response, honoring ctx cancellation/timeout.
func (b *Broker[M]) Request(ctx context.Context, env Envelope[M]) (M, error) {
	if env.CorrelationID == "" {
		env.CorrelationID = uuid.NewString()
	}
	wait := b.correlation.register(env.CorrelationID)
	defer b.correlation.cancel(env.CorrelationID)

	if err := b.Send(env); err != nil {
		var zero M
		return zero, err
	}

	select {
	case resp := <-wait:
		return resp, nil
	case <-ctx.Done():
		var zero M
		return zero, ctx.Err()
	}
}

// Resolve delivers a response to whoever is waiting on correlationID. A
// late resolve (no matching waiter, or one that already timed out) is a
// silent no-op, matching the at-most-one-outstanding-per-id contract.
func (b *Broker[M]) Resolve(correlationID string, response M) {
	b.correlation.resolve(correlationID, response)
}
