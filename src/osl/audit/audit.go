// Package audit implements the audit record and sinks emitted by the
// security middleware and the WASM host-function bridge (spec §4.2, §4.7,
// §6). Every security decision — allow or deny — is submitted, so denial
// and grant histories stay symmetric (spec §7).
package audit

import (
	"context"
	"sync"
	"time"
)

// Decision mirrors policy.Decision without importing the policy package,
// keeping audit a leaf dependency usable from both osl and wasmhost.
type Decision string

const (
	DecisionAllow Decision = "Allow"
	DecisionDeny  Decision = "Deny"
)

// Record is the audit record emitted for every security decision.
type Record struct {
	Timestamp     time.Time
	Principal     string
	ComponentID   string
	OperationKind string
	Resource      string
	Decision      Decision
	Reason        string
	CorrelationID string
}

// Sink receives audit records. Implementations must not block the caller
// for long; the ring buffer sink is the default, always-available sink.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// RingBuffer is an in-memory, fixed-capacity audit sink. It never blocks
// and never fails: once full, the oldest record is evicted.
type RingBuffer struct {
	mu       sync.Mutex
	records  []Record
	capacity int
	next     int
	full     bool
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{records: make([]Record, capacity), capacity: capacity}
}

func (b *RingBuffer) Record(_ context.Context, r Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[b.next] = r
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
	return nil
}

// Snapshot returns a copy of all records currently held, oldest first.
func (b *RingBuffer) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]Record, b.next)
		copy(out, b.records[:b.next])
		return out
	}

	out := make([]Record, b.capacity)
	copy(out, b.records[b.next:])
	copy(out[b.capacity-b.next:], b.records[:b.next])
	return out
}

// Fanout submits every record to all of its sinks; a failing sink does not
// stop delivery to the others, mirroring the broker's publish fan-out
// semantics (spec §4.4) applied to audit delivery.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Record(ctx context.Context, r Record) error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Record(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
