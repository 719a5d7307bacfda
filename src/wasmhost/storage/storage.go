// Package storage implements the per-component namespaced key/value
// backend backing the storage-get/put/delete host functions of spec
// §4.7: an in-memory default, or an optional Redis-backed durable
// backend, both enforcing a per-component byte quota.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by Put once a namespace would exceed its
// configured byte quota.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

// ErrNotFound is returned by Get/Delete for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the storage contract the host bridge calls into. Namespace
// is normally the owning component's id, keeping components isolated
// from one another (spec §4.7).
type Backend interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte, quotaBytes uint64) error
	Delete(ctx context.Context, namespace, key string) error
}

// InMemory is the zero-dependency default backend, used when no durable
// store is configured.
type InMemory struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
	size map[string]uint64
}

var _ Backend = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]map[string][]byte), size: make(map[string]uint64)}
}

func (m *InMemory) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := ns[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *InMemory) Put(_ context.Context, namespace, key string, value []byte, quotaBytes uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}

	newSize := m.size[namespace] - uint64(len(ns[key])) + uint64(len(value))
	if quotaBytes > 0 && newSize > quotaBytes {
		return ErrQuotaExceeded
	}

	ns[key] = append([]byte(nil), value...)
	m.size[namespace] = newSize
	return nil
}

func (m *InMemory) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		return ErrNotFound
	}
	v, ok := ns[key]
	if !ok {
		return ErrNotFound
	}
	m.size[namespace] -= uint64(len(v))
	delete(ns, key)
	return nil
}
