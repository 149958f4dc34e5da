// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package idempotency provides a keyed result cache with
// collapse-to-one-execution semantics: concurrent or repeated calls
// sharing an idempotency key run the wrapped operation at most once,
// and every caller observes the same result.
//
// Records live in an in-memory map with optional read-through to a
// durable store. Expiration is evaluated against the clock on every
// read; failed operations are never cached.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/storage"
)

// DefaultExpiration is the record lifetime when callers supply none.
const DefaultExpiration = 60 * time.Minute

// ErrRecordNotFound is returned for lookups of keys with no valid
// record. Callers treat it as a legitimate "not yet executed" state.
var ErrRecordNotFound = errors.New("idempotency record not found")

// Operation is the unit of work guarded by a key. The returned bytes
// are opaque to the cache.
type Operation func(ctx context.Context) (json.RawMessage, error)

// Record is one cached execution result.
type Record struct {
	Key           string          `json:"key"`
	CorrelationID string          `json:"correlationId"`
	Result        json.RawMessage `json:"result"`
	CreatedAtMs   int64           `json:"createdAtMs"`
	ExpiresAtMs   int64           `json:"expiresAtMs"`
}

// Stats is a point-in-time snapshot of cache contents and traffic.
type Stats struct {
	Total      int   `json:"total"`
	Active     int   `json:"active"`
	Expired    int   `json:"expired"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Collisions int64 `json:"collisions"`
}

// Config configures a Cache. All fields are optional.
type Config struct {
	// Namespace prefixes durable-store keys. Default "plc".
	Namespace string

	// Store enables durable persistence with read-through.
	Store storage.DurableStore

	// Logger for cache events.
	Logger *logging.Logger

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// ExecuteOption adjusts a single Execute call.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	expiration time.Duration
}

// WithExpiration overrides the record lifetime for one call. Zero or
// negative values produce a record that is already expired when
// written; it is never a usable cache hit.
func WithExpiration(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.expiration = d }
}

// Cache is the idempotent-execution cache.
//
// Thread Safety: all methods are safe for concurrent use. The
// check-then-act sequence in Execute is guarded by a singleflight
// group keyed on the idempotency key, with a double-check inside the
// flight, so one execution serves all concurrent callers.
type Cache struct {
	ns      string
	durable storage.DurableStore
	logger  *logging.Logger
	clock   func() time.Time

	mu      sync.RWMutex
	records map[string]*Record

	flight singleflight.Group

	hits       atomic.Int64
	misses     atomic.Int64
	collisions atomic.Int64
}

// NewCache creates an empty Cache.
func NewCache(cfg Config) *Cache {
	if cfg.Namespace == "" {
		cfg.Namespace = "plc"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Cache{
		ns:      cfg.Namespace,
		durable: cfg.Store,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		records: make(map[string]*Record),
	}
}

// Execute runs op under key with exactly-once-effective semantics.
//
// Description:
//
//	Checks for a valid cached record (memory, then durable storage
//	with registry re-population). On a hit the cached result is
//	returned without invoking op. On a miss the call enters a
//	singleflight keyed on key, double-checks the cache, then invokes
//	op once for all concurrent callers. A successful result is cached
//	in memory and written through; a failure propagates without
//	caching, so the next call retries from scratch.
//
// Inputs:
//
//	ctx - Context passed to op and durable-store I/O.
//	key - Idempotency key; derivation is the caller's concern.
//	correlationID - Context active for this call, recorded for
//	    collision auditing.
//	op - The operation to guard.
//	opts - Per-call options (WithExpiration).
//
// Outputs:
//
//	json.RawMessage - The operation's (possibly cached) result.
//	error - op's own error, propagated verbatim.
func (c *Cache) Execute(ctx context.Context, key, correlationID string, op Operation, opts ...ExecuteOption) (json.RawMessage, error) {
	options := executeOptions{expiration: DefaultExpiration}
	for _, opt := range opts {
		opt(&options)
	}

	c.DetectCollision(key, correlationID)

	if rec, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		c.logger.Debug("idempotency cache hit",
			"key", key, "correlation_id", correlationID)
		return rec.Result, nil
	}
	c.misses.Add(1)

	result, err, _ := c.flight.Do(key, func() (any, error) {
		// Another caller may have completed the flight between our
		// lookup and entry; serve its record instead of re-running.
		if rec, ok := c.lookup(ctx, key); ok {
			return rec.Result, nil
		}

		out, err := op(ctx)
		if err != nil {
			return nil, err
		}

		now := c.clock().UnixMilli()
		rec := &Record{
			Key:           key,
			CorrelationID: correlationID,
			Result:        out,
			CreatedAtMs:   now,
			ExpiresAtMs:   now + options.expiration.Milliseconds(),
		}
		c.store(ctx, rec)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// HasRecord reports whether a valid (unexpired) record exists for key.
// Expiration is evaluated at call time, never cached as a boolean.
func (c *Cache) HasRecord(key string) bool {
	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()
	return ok && rec.ExpiresAtMs > c.clock().UnixMilli()
}

// GetRecord returns the valid record for key, or ErrRecordNotFound.
func (c *Cache) GetRecord(ctx context.Context, key string) (*Record, error) {
	if rec, ok := c.lookup(ctx, key); ok {
		out := *rec
		return &out, nil
	}
	return nil, ErrRecordNotFound
}

// InvalidateRecord removes key from memory and durable storage.
func (c *Cache) InvalidateRecord(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.records, key)
	c.mu.Unlock()
	if c.durable != nil {
		if err := c.durable.Delete(ctx, storage.IdempotencyKey(c.ns, key)); err != nil {
			return fmt.Errorf("durable delete %s: %w", key, err)
		}
	}
	return nil
}

// DetectCollision reports whether key is resident under a different
// correlation id. Collisions signal key-derivation bugs; they are
// warned and counted, never a hard failure.
func (c *Cache) DetectCollision(key, correlationID string) bool {
	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()
	if !ok || rec.CorrelationID == correlationID {
		return false
	}
	c.collisions.Add(1)
	c.logger.Warn("idempotency key collision",
		"key", key,
		"record_correlation_id", rec.CorrelationID,
		"caller_correlation_id", correlationID)
	return true
}

// Stats returns a snapshot of cache contents and hit/miss counters.
func (c *Cache) Stats() Stats {
	now := c.clock().UnixMilli()
	c.mu.RLock()
	total := len(c.records)
	active := 0
	for _, rec := range c.records {
		if rec.ExpiresAtMs > now {
			active++
		}
	}
	c.mu.RUnlock()
	return Stats{
		Total:      total,
		Active:     active,
		Expired:    total - active,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Collisions: c.collisions.Load(),
	}
}

// Cleanup sweeps expired records from memory and deletes their durable
// keys. Returns the number of records removed.
func (c *Cache) Cleanup(ctx context.Context) (int, error) {
	now := c.clock().UnixMilli()

	c.mu.Lock()
	var expired []string
	for key, rec := range c.records {
		if rec.ExpiresAtMs <= now {
			expired = append(expired, key)
			delete(c.records, key)
		}
	}
	c.mu.Unlock()

	var firstErr error
	for _, key := range expired {
		if c.durable == nil {
			continue
		}
		if err := c.durable.Delete(ctx, storage.IdempotencyKey(c.ns, key)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("durable delete %s: %w", key, err)
		}
	}

	if len(expired) > 0 {
		c.logger.Debug("idempotency records swept", "count", len(expired))
	}
	return len(expired), firstErr
}

// lookup resolves a valid record from memory, then durable storage.
// A durable hit re-populates the in-memory map.
func (c *Cache) lookup(ctx context.Context, key string) (*Record, bool) {
	now := c.clock().UnixMilli()

	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()
	if ok {
		if rec.ExpiresAtMs > now {
			return rec, true
		}
		return nil, false
	}

	if c.durable == nil {
		return nil, false
	}
	raw, err := c.durable.Get(ctx, storage.IdempotencyKey(c.ns, key))
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			c.logger.Warn("durable idempotency read failed",
				"key", key, "error", err.Error())
		}
		return nil, false
	}

	var restored Record
	if err := json.Unmarshal(raw, &restored); err != nil {
		c.logger.Warn("corrupt idempotency record dropped",
			"key", key, "error", err.Error())
		return nil, false
	}
	if restored.ExpiresAtMs <= now {
		return nil, false
	}

	c.mu.Lock()
	c.records[key] = &restored
	c.mu.Unlock()
	return &restored, true
}

// store writes a record to memory and, when configured, through to
// durable storage. Write-through failures are logged, not fatal; the
// in-memory record still serves this process.
func (c *Cache) store(ctx context.Context, rec *Record) {
	c.mu.Lock()
	c.records[rec.Key] = rec
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("encode idempotency record failed",
			"key", rec.Key, "error", err.Error())
		return
	}
	ttl := time.Duration(rec.ExpiresAtMs-rec.CreatedAtMs) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	if err := c.durable.Set(ctx, storage.IdempotencyKey(c.ns, rec.Key), raw, ttl); err != nil {
		c.logger.Warn("durable idempotency write failed",
			"key", rec.Key, "error", err.Error())
	}
}
