// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage defines the durable key-value store used by the
// correlation store and idempotency cache for read-through persistence.
//
// Entries are self-describing JSON documents carrying their own
// expiration field; the store itself only needs get/set/delete over
// namespaced string keys. Backends:
//
//   - memory: in-process map, for tests and single-node dev
//   - badger: embedded BadgerDB with native TTL (storage/badger)
//   - redis: shared Redis with SET ... EX (storage/redis)
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get for an absent (or expired) key.
// Callers treat it as a legitimate "not yet established" state.
var ErrKeyNotFound = errors.New("key not found")

// DurableStore is the persistence interface injected into the
// correlation store and idempotency cache.
//
// A ttl of zero means the backend keeps the entry until deleted; the
// owning component still evaluates the entry's own expiration field on
// every read, so backend TTL is an optimization, not the source of
// truth.
//
// Implementations must be safe for concurrent use.
type DurableStore interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with an optional ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// CorrelationKey builds the durable-store key for a correlation context.
// Layout: <ns>_correlation_<id>.
func CorrelationKey(namespace, correlationID string) string {
	return namespace + "_correlation_" + correlationID
}

// IdempotencyKey builds the durable-store key for an idempotency record.
// Layout: <ns>_idempotency_<key>.
func IdempotencyKey(namespace, key string) string {
	return namespace + "_idempotency_" + key
}
