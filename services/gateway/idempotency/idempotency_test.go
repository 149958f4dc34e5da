// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/storage"
)

const (
	testKey  = "idem_favorite_toggle_AAAAAAAAAAAAAAAAAAAAAA"
	testCorr = "plc_0123456789abcdef0123456789abcdef"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingOp(calls *atomic.Int64, result string) Operation {
	return func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		return json.RawMessage(result), nil
	}
}

func TestExecute_ExactlyOnce(t *testing.T) {
	c := NewCache(Config{})
	ctx := context.Background()
	var calls atomic.Int64

	first, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `{"ok":true}`))
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	second, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `{"ok":true}`))
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("operation invoked %d times, want 1", calls.Load())
	}
	if !bytes.Equal(first, second) {
		t.Errorf("results differ: %s vs %s", first, second)
	}
}

func TestExecute_FailureNotCached(t *testing.T) {
	c := NewCache(Config{})
	ctx := context.Background()

	opErr := errors.New("upstream exploded")
	var calls atomic.Int64
	failing := func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		return nil, opErr
	}

	_, err := c.Execute(ctx, testKey, testCorr, failing)
	if !errors.Is(err, opErr) {
		t.Fatalf("Execute returned %v, want the operation's own error", err)
	}
	if c.HasRecord(testKey) {
		t.Error("failed operation left a record behind")
	}

	// The next call retries from scratch.
	if _, err := c.Execute(ctx, testKey, testCorr, failing); !errors.Is(err, opErr) {
		t.Fatalf("retry returned %v, want the operation's own error", err)
	}
	if calls.Load() != 2 {
		t.Errorf("operation invoked %d times, want 2", calls.Load())
	}
}

func TestExecute_ExpirationBoundary(t *testing.T) {
	clock := &testClock{now: time.Now()}
	c := NewCache(Config{Clock: clock.Now})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`), WithExpiration(time.Minute)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// One millisecond before expiry: still a hit.
	clock.Advance(time.Minute - time.Millisecond)
	if !c.HasRecord(testKey) {
		t.Error("record expired one millisecond early")
	}
	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("operation invoked %d times before expiry, want 1", calls.Load())
	}

	// At the boundary: a miss.
	clock.Advance(time.Millisecond)
	if c.HasRecord(testKey) {
		t.Error("record still valid at its expiry instant")
	}
	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("operation invoked %d times after expiry, want 2", calls.Load())
	}
}

func TestExecute_ZeroExpiration(t *testing.T) {
	c := NewCache(Config{})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`), WithExpiration(0)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if c.HasRecord(testKey) {
		t.Error("HasRecord true for a zero-expiration record")
	}
}

func TestExecute_ConcurrentCallsCollapse(t *testing.T) {
	c := NewCache(Config{})
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	slowOp := func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		<-release
		return json.RawMessage(`{"winner":true}`), nil
	}

	const workers = 16
	results := make([]json.RawMessage, workers)
	errs := make([]error, workers)
	var started, done sync.WaitGroup
	started.Add(workers)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = c.Execute(ctx, testKey, testCorr, slowOp)
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond) // let all callers reach the flight
	close(release)
	done.Wait()

	if calls.Load() != 1 {
		t.Errorf("operation invoked %d times under concurrency, want 1", calls.Load())
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], results[0]) {
			t.Errorf("worker %d observed a different result", i)
		}
	}
}

func TestExecute_DurableReadThrough(t *testing.T) {
	durable := storage.NewMemoryStore()
	c := NewCache(Config{Store: durable})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `{"v":1}`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// A fresh cache sharing the durable store must hit without
	// re-running the operation.
	warm := NewCache(Config{Store: durable})
	result, err := warm.Execute(ctx, testKey, testCorr, countingOp(&calls, `{"v":2}`))
	if err != nil {
		t.Fatalf("Execute on warm cache failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("operation invoked %d times, want 1", calls.Load())
	}
	if string(result) != `{"v":1}` {
		t.Errorf("warm cache returned %s, want the original result", result)
	}
	if !warm.HasRecord(testKey) {
		t.Error("durable hit did not re-populate the in-memory map")
	}
}

func TestInvalidateRecord(t *testing.T) {
	durable := storage.NewMemoryStore()
	c := NewCache(Config{Store: durable})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := c.InvalidateRecord(ctx, testKey); err != nil {
		t.Fatalf("InvalidateRecord failed: %v", err)
	}
	if c.HasRecord(testKey) {
		t.Error("record survived invalidation")
	}
	if _, err := durable.Get(ctx, storage.IdempotencyKey("plc", testKey)); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("durable record survived invalidation: %v", err)
	}

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`)); err != nil {
		t.Fatalf("Execute after invalidation failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("operation invoked %d times, want 2", calls.Load())
	}
}

func TestDetectCollision(t *testing.T) {
	c := NewCache(Config{})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, testKey, testCorr, countingOp(&calls, `1`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if c.DetectCollision(testKey, testCorr) {
		t.Error("same correlation id reported as a collision")
	}
	other := "plc_ffffffffffffffffffffffffffffffff"
	if !c.DetectCollision(testKey, other) {
		t.Error("different correlation id not reported as a collision")
	}

	// A colliding Execute still serves the cached result.
	result, err := c.Execute(ctx, testKey, other, countingOp(&calls, `2`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(result) != `1` {
		t.Errorf("collision returned %s, want the cached result", result)
	}
	if calls.Load() != 1 {
		t.Errorf("operation invoked %d times, want 1", calls.Load())
	}
	if got := c.Stats().Collisions; got < 2 {
		t.Errorf("Collisions = %d, want at least 2", got)
	}
}

func TestStats(t *testing.T) {
	clock := &testClock{now: time.Now()}
	c := NewCache(Config{Clock: clock.Now})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, "idem_rsvp_AAAAAAAAAAAAAAAAAAAAAA", testCorr, countingOp(&calls, `1`), WithExpiration(time.Minute)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := c.Execute(ctx, "idem_booking_AAAAAAAAAAAAAAAAAAAAAA", testCorr, countingOp(&calls, `1`), WithExpiration(time.Hour)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	stats := c.Stats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.Misses != 2 {
		t.Errorf("Misses = %d, want 2", stats.Misses)
	}
}

func TestCleanup(t *testing.T) {
	clock := &testClock{now: time.Now()}
	durable := storage.NewMemoryStore()
	c := NewCache(Config{Store: durable, Clock: clock.Now})
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := c.Execute(ctx, "idem_rsvp_AAAAAAAAAAAAAAAAAAAAAA", testCorr, countingOp(&calls, `1`), WithExpiration(time.Minute)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := c.Execute(ctx, "idem_booking_AAAAAAAAAAAAAAAAAAAAAA", testCorr, countingOp(&calls, `1`), WithExpiration(time.Hour)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	n, err := c.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Cleanup removed %d records, want 1", n)
	}
	if got := c.Stats().Total; got != 1 {
		t.Errorf("Total after cleanup = %d, want 1", got)
	}
}
