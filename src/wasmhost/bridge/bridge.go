// Package bridge implements the host-function contracts of spec §4.7:
// the fixed set of imports every guest component can call into, each
// gated by an ordered sequence of pre-checks before the effect runs.
package bridge

import (
	"context"
	"fmt"
	neturl "net/url"

	"github.com/airssys-go/platform/src/actor/broker"
	"github.com/airssys-go/platform/src/osl/audit"
	"github.com/airssys-go/platform/src/osl/oserr"
	"github.com/airssys-go/platform/src/wasmhost/capability"
	"github.com/airssys-go/platform/src/wasmhost/codec"
	"github.com/airssys-go/platform/src/wasmhost/ratelimit"
	"github.com/airssys-go/platform/src/wasmhost/storage"
)

// MaxPayloadBytes bounds a single send-message/request payload.
const MaxPayloadBytes = 1 << 20

// Bridge wires the capability table, rate limiter, message broker, and
// storage backend together behind the guest-visible host-function
// surface. One Bridge instance serves every component in the host.
type Bridge struct {
	caps    *capability.Table
	limiter *ratelimit.Limiter
	brk     *broker.Broker[[]byte]
	store   storage.Backend
	sink    audit.Sink
}

func New(caps *capability.Table, limiter *ratelimit.Limiter, brk *broker.Broker[[]byte], store storage.Backend, sink audit.Sink) *Bridge {
	return &Bridge{caps: caps, limiter: limiter, brk: brk, store: store, sink: sink}
}

func (b *Bridge) deny(ctx context.Context, componentID, opKind, resource, reason string) error {
	_ = b.sink.Record(ctx, audit.Record{
		Principal:     componentID,
		OperationKind: opKind,
		Resource:      resource,
		Decision:      audit.DecisionDeny,
		Reason:        reason,
	})
	return oserr.New(oserr.CategorySecurity, oserr.KindCapabilityDenied, reason)
}

func (b *Bridge) denyInvalidCodec(ctx context.Context, componentID, opKind, resource, reason string) error {
	_ = b.sink.Record(ctx, audit.Record{
		Principal:     componentID,
		OperationKind: opKind,
		Resource:      resource,
		Decision:      audit.DecisionDeny,
		Reason:        reason,
	})
	return oserr.New(oserr.CategoryValidation, oserr.KindInvalidMulticodec, reason)
}

func (b *Bridge) allow(ctx context.Context, componentID, opKind, resource string) {
	_ = b.sink.Record(ctx, audit.Record{
		Principal:     componentID,
		OperationKind: opKind,
		Resource:      resource,
		Decision:      audit.DecisionAllow,
		Reason:        "granted",
	})
}

// SendMessage implements the send-message(target, bytes) import: verify
// the payload size and sender capability, apply the rate limiter, then
// publish to the broker addressed at target.
func (b *Bridge) SendMessage(ctx context.Context, componentID, target string, payload []byte) error {
	if len(payload) == 0 {
		return b.deny(ctx, componentID, "bridge.send_message", target, "empty payload")
	}
	if len(payload) > MaxPayloadBytes {
		return b.deny(ctx, componentID, "bridge.send_message", target, "payload exceeds size limit")
	}
	if _, err := codec.SniffTag(payload); err != nil {
		return b.denyInvalidCodec(ctx, componentID, "bridge.send_message", target, err.Error())
	}
	if !b.caps.Can(componentID, capability.Messaging, target) {
		return b.deny(ctx, componentID, "bridge.send_message", target, "path not matched")
	}
	if !b.limiter.Allow(componentID) {
		return b.deny(ctx, componentID, "bridge.send_message", target, "rate limit exceeded")
	}

	b.allow(ctx, componentID, "bridge.send_message", target)
	return b.brk.Send(broker.NewEnvelope(componentID, target, payload))
}

// Request implements the request(target, bytes, timeout) import: the
// same pre-checks as SendMessage, then registers a correlation waiter and
// blocks for the response or the caller's timeout.
func (b *Bridge) Request(ctx context.Context, componentID, target string, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, b.deny(ctx, componentID, "bridge.request", target, "payload exceeds size limit")
	}
	if _, err := codec.SniffTag(payload); err != nil {
		return nil, b.denyInvalidCodec(ctx, componentID, "bridge.request", target, err.Error())
	}
	if !b.caps.Can(componentID, capability.Messaging, target) {
		return nil, b.deny(ctx, componentID, "bridge.request", target, "path not matched")
	}
	if !b.limiter.Allow(componentID) {
		return nil, b.deny(ctx, componentID, "bridge.request", target, "rate limit exceeded")
	}

	b.allow(ctx, componentID, "bridge.request", target)
	return b.brk.Request(ctx, broker.NewEnvelope(componentID, target, payload))
}

// Subscribe implements the subscribe(topic) import: the caller must hold
// a Messaging grant whose pattern matches topic.
func (b *Bridge) Subscribe(ctx context.Context, componentID, topic string, sender broker.Sender[[]byte]) error {
	if !b.caps.Can(componentID, capability.Messaging, topic) {
		return b.deny(ctx, componentID, "bridge.subscribe", topic, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.subscribe", topic)
	b.brk.Subscribe(componentID, topic, sender)
	return nil
}

// StorageGet implements storage-get(key): requires a Storage grant whose
// pattern matches "<namespace>/<key>".
func (b *Bridge) StorageGet(ctx context.Context, componentID, key string) ([]byte, error) {
	resource := componentID + "/" + key
	if !b.caps.Can(componentID, capability.Storage, resource) {
		return nil, b.deny(ctx, componentID, "bridge.storage_get", resource, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.storage_get", resource)
	return b.store.Get(ctx, componentID, key)
}

// StoragePut implements storage-put(key, value, quota): the grant check
// plus a quota check delegated to the storage backend.
func (b *Bridge) StoragePut(ctx context.Context, componentID, key string, value []byte, quotaBytes uint64) error {
	resource := componentID + "/" + key
	if !b.caps.Can(componentID, capability.Storage, resource) {
		return b.deny(ctx, componentID, "bridge.storage_put", resource, "path not matched")
	}
	if err := b.store.Put(ctx, componentID, key, value, quotaBytes); err != nil {
		return b.deny(ctx, componentID, "bridge.storage_put", resource, fmt.Sprintf("quota check failed: %v", err))
	}
	b.allow(ctx, componentID, "bridge.storage_put", resource)
	return nil
}

// StorageDelete implements storage-delete(key).
func (b *Bridge) StorageDelete(ctx context.Context, componentID, key string) error {
	resource := componentID + "/" + key
	if !b.caps.Can(componentID, capability.Storage, resource) {
		return b.deny(ctx, componentID, "bridge.storage_delete", resource, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.storage_delete", resource)
	return b.store.Delete(ctx, componentID, key)
}

// FSAccessor delegates fs-read/fs-write through the OS executor pipeline
// (osl/executors), kept as a narrow interface so bridge does not import
// the executor/middleware packages directly.
type FSAccessor interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

// FSRead implements fs-read(path): the caller must hold a Filesystem
// grant matching path.
func (b *Bridge) FSRead(ctx context.Context, componentID, path string, fs FSAccessor) ([]byte, error) {
	if !b.caps.Can(componentID, capability.Filesystem, path) {
		return nil, b.deny(ctx, componentID, "bridge.fs_read", path, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.fs_read", path)
	return fs.Read(ctx, path)
}

// FSWrite implements fs-write(path, bytes).
func (b *Bridge) FSWrite(ctx context.Context, componentID, path string, data []byte, fs FSAccessor) error {
	if !b.caps.Can(componentID, capability.Filesystem, path) {
		return b.deny(ctx, componentID, "bridge.fs_write", path, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.fs_write", path)
	return fs.Write(ctx, path, data)
}

// NetFetcher delegates net-fetch through the OS executor pipeline.
type NetFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NetFetch implements net-fetch(url): the caller must hold a Network
// grant whose pattern matches the target host.
func (b *Bridge) NetFetch(ctx context.Context, componentID, url string, net NetFetcher) ([]byte, error) {
	host := url
	if u, err := neturl.Parse(url); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	if !b.caps.Can(componentID, capability.Network, host) {
		return nil, b.deny(ctx, componentID, "bridge.net_fetch", url, "path not matched")
	}
	b.allow(ctx, componentID, "bridge.net_fetch", url)
	return net.Fetch(ctx, url)
}
