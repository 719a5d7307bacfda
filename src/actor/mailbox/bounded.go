package mailbox

import (
	"sync"
	"sync/atomic"
)

// BoundedMailbox is a fixed-capacity FIFO queue with a configurable
// BackpressurePolicy applied once the queue is full (spec §3, §4.3).
type BoundedMailbox[M any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []M
	capacity int
	policy   BackpressurePolicy
	closed   bool

	sent     atomic.Uint64
	received atomic.Uint64
	inFlight atomic.Int64
}

var _ Mailbox[int] = (*BoundedMailbox[int])(nil)

// NewBoundedMailbox creates a mailbox holding at most capacity messages.
// A capacity <= 0 is treated as 1 to avoid a permanently full mailbox.
func NewBoundedMailbox[M any](capacity int, policy BackpressurePolicy) *BoundedMailbox[M] {
	if capacity <= 0 {
		capacity = 1
	}
	b := &BoundedMailbox[M]{
		queue:    make([]M, 0, capacity),
		capacity: capacity,
		policy:   policy,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

func (b *BoundedMailbox[M]) Capacity() int { return b.capacity }

func (b *BoundedMailbox[M]) Metrics() Metrics {
	return Metrics{
		Sent:     b.sent.Load(),
		Received: b.received.Load(),
		InFlight: b.inFlight.Load(),
	}
}

// Send enqueues msg, applying the mailbox's BackpressurePolicy when full.
func (b *BoundedMailbox[M]) Send(msg M) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for len(b.queue) >= b.capacity {
		switch b.policy {
		case Block:
			b.notFull.Wait()
			if b.closed {
				return ErrClosed
			}
			continue
		case DropOldest:
			b.queue = b.queue[1:]
			b.inFlight.Add(-1)
		case DropNewest:
			b.sent.Add(1) // counted as accepted-then-discarded, not enqueued
			return nil
		default: // Error
			return ErrFull
		}
		break
	}

	b.queue = append(b.queue, msg)
	b.sent.Add(1)
	b.inFlight.Add(1)
	b.notEmpty.Signal()
	return nil
}

// TryRecv returns the next message without blocking.
func (b *BoundedMailbox[M]) TryRecv() (M, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero M
	if len(b.queue) == 0 {
		if b.closed {
			return zero, ErrDisconnected
		}
		return zero, ErrEmpty
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	b.received.Add(1)
	b.inFlight.Add(-1)
	b.notFull.Signal()
	return msg, nil
}

// Recv blocks until a message is available, the mailbox is closed, or stop
// is signaled.
func (b *BoundedMailbox[M]) Recv(stop <-chan struct{}) (M, error) {
	done := make(chan struct{})
	if stop != nil {
		go func() {
			select {
			case <-stop:
				b.mu.Lock()
				b.notEmpty.Broadcast()
				b.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var zero M
	for len(b.queue) == 0 && !b.closed {
		if stop != nil {
			select {
			case <-stop:
				return zero, ErrEmpty
			default:
			}
		}
		b.notEmpty.Wait()
	}
	if len(b.queue) == 0 && b.closed {
		return zero, ErrDisconnected
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	b.received.Add(1)
	b.inFlight.Add(-1)
	b.notFull.Signal()
	return msg, nil
}

// Close marks the mailbox disconnected; queued messages remain drainable
// via TryRecv/Recv until empty, after which both report ErrDisconnected.
func (b *BoundedMailbox[M]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}
