// Package kv wraps the backing key-value store. The store is schemaless and
// flat: it can read everything under a collection, write one key and delete
// one key, nothing else. Filtering, sorting and pagination happen in memory
// above this layer.
package kv

import (
	"context"
	"fmt"
)

// Store is the narrow surface every backend must implement. Documents are
// JSON strings keyed within named collections.
type Store interface {
	// GetAll returns the full snapshot of a collection as key -> document.
	GetAll(ctx context.Context, collection string) (map[string]string, error)

	// Get returns one document and whether it exists.
	Get(ctx context.Context, collection, key string) (string, bool, error)

	// Put inserts or replaces one document.
	Put(ctx context.Context, collection, key, doc string) error

	// Delete removes one document. Returns true if it existed.
	Delete(ctx context.Context, collection, key string) (bool, error)

	// Ping issues a lightweight connectivity probe.
	Ping(ctx context.Context) error

	Close() error
}

// Open creates a Store by backend name.
//
//	"redis"  - Redis, one hash per collection (default)
//	"memory" - in-memory (ephemeral, for tests and local runs)
func Open(backend string, opts RedisOpts) (Store, error) {
	switch backend {
	case "redis", "":
		return newRedisStore(opts)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv backend: %q (supported: redis, memory)", backend)
	}
}
