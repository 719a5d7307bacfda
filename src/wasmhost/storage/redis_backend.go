package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend persists component storage in Redis, one hash per namespace
// at "wasmhost:storage:<namespace>" with each key stored as a field; the
// per-namespace quota is computed from the values read back with HGETALL
// rather than from an in-process counter.
type RedisBackend struct {
	client *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func namespaceKey(namespace string) string {
	return "wasmhost:storage:" + namespace
}

func (r *RedisBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := r.client.HGet(ctx, namespaceKey(namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis storage get: %w", err)
	}
	return v, nil
}

func (r *RedisBackend) Put(ctx context.Context, namespace, key string, value []byte, quotaBytes uint64) error {
	if quotaBytes > 0 {
		used, err := r.namespaceSize(ctx, namespace, key)
		if err != nil {
			return err
		}
		if used+uint64(len(value)) > quotaBytes {
			return ErrQuotaExceeded
		}
	}
	if err := r.client.HSet(ctx, namespaceKey(namespace), key, value).Err(); err != nil {
		return fmt.Errorf("redis storage put: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	n, err := r.client.HDel(ctx, namespaceKey(namespace), key).Result()
	if err != nil {
		return fmt.Errorf("redis storage delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// namespaceSize sums the byte length of every value in namespace except
// key (whose prior size is about to be replaced), used for quota checks.
func (r *RedisBackend) namespaceSize(ctx context.Context, namespace, key string) (uint64, error) {
	all, err := r.client.HGetAll(ctx, namespaceKey(namespace)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis storage quota check: %w", err)
	}
	var total uint64
	for k, v := range all {
		if k == key {
			continue
		}
		total += uint64(len(v))
	}
	return total, nil
}
