// Package ratelimit implements the per-sender host-function rate limiter
// of spec §4.7: a sliding-window-style limiter keyed by sender component
// id, bounded by a configurable tracked-sender cap with conservative deny
// on overflow.
package ratelimit

import (
	"container/list"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter tracks one token-bucket per sender, approximating the spec's
// sliding window (x/time/rate is the ecosystem's standard rate primitive;
// a literal sliding-window counter would require hand-rolling the same
// guarantees x/time/rate already gives us). An LRU of at most maxTracked
// senders bounds memory: a new sender arriving at the cap evicts the
// least-recently-used sender, is given a fresh bucket, and has that first
// call denied.
type Limiter struct {
	mu         sync.Mutex
	perSecond  rate.Limit
	burst      int
	maxTracked int
	buckets    map[string]*list.Element
	order      *list.List // front = most recently used
}

type entry struct {
	sender  string
	limiter *rate.Limiter
}

// New builds a limiter allowing perSecond operations/sec with the given
// burst, tracking at most maxTracked distinct senders at once.
func New(perSecond float64, burst, maxTracked int) *Limiter {
	if maxTracked <= 0 {
		maxTracked = 4096
	}
	return &Limiter{
		perSecond:  rate.Limit(perSecond),
		burst:      burst,
		maxTracked: maxTracked,
		buckets:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Allow reports whether sender may perform one more host-function call
// right now. When the tracked-sender cap is reached, the call of a
// brand-new sender is conservatively denied (its bucket is still tracked,
// in place of the least-recently-used sender).
func (l *Limiter) Allow(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.buckets[sender]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*entry).limiter.Allow()
	}

	overflow := false
	if len(l.buckets) >= l.maxTracked {
		back := l.order.Back()
		if back != nil {
			l.order.Remove(back)
			delete(l.buckets, back.Value.(*entry).sender)
			overflow = true
		}
	}

	lim := rate.NewLimiter(l.perSecond, l.burst)
	el := l.order.PushFront(&entry{sender: sender, limiter: lim})
	l.buckets[sender] = el
	if overflow {
		return false
	}
	return lim.Allow()
}

// TrackedSenders reports how many distinct senders currently have a
// bucket, for diagnostics and tests.
func (l *Limiter) TrackedSenders() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
