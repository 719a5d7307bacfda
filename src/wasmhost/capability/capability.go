// Package capability implements the component capability grant model of
// spec §3/§6: pattern-scoped Messaging/Storage/Filesystem/Network grants
// with optional expiry, checked at the host-function boundary (§4.7).
package capability

import (
	"sync"
	"time"

	"github.com/airssys-go/platform/src/common/pattern"
)

// Kind names one of the four capability families a component can hold.
type Kind string

const (
	Messaging  Kind = "messaging"
	Storage    Kind = "storage"
	Filesystem Kind = "filesystem"
	Network    Kind = "network"
)

// Grant is a single capability bound to a component id, scoped to a
// pattern, with an optional expiry.
type Grant struct {
	Kind      Kind
	Pattern   string
	ExpiresAt *time.Time // nil means no expiry
}

func (g Grant) expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// Table is the read-mostly capability grant table (spec §5): component id
// -> grants, with exclusive-lock writes and shared-lock reads.
type Table struct {
	mu     sync.RWMutex
	grants map[string][]Grant
}

func NewTable() *Table {
	return &Table{grants: make(map[string][]Grant)}
}

// Grant adds a capability grant for componentID. Repeated calls accumulate
// grants; revoke specific ones with Revoke.
func (t *Table) Grant(componentID string, g Grant) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[componentID] = append(t.grants[componentID], g)
}

// Revoke removes every grant of the given kind for componentID.
func (t *Table) Revoke(componentID string, kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.grants[componentID][:0]
	for _, g := range t.grants[componentID] {
		if g.Kind != kind {
			remaining = append(remaining, g)
		}
	}
	t.grants[componentID] = remaining
}

// RevokeAll removes every grant held by componentID, e.g. on component
// destruction (spec §3: "capability grant ... removed on unregister or
// when the supervisor destroys the component").
func (t *Table) RevokeAll(componentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants, componentID)
}

// Can reports whether componentID holds a non-expired grant of kind whose
// Pattern matches resource.
func (t *Table) Can(componentID string, kind Kind, resource string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := time.Now()
	for _, g := range t.grants[componentID] {
		if g.Kind != kind || g.expired(now) {
			continue
		}
		if pattern.Match(g.Pattern, resource) {
			return true
		}
	}
	return false
}
