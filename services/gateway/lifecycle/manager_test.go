// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/storage"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
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

// failingStore rejects deletes so cleanup errors can be exercised.
type failingStore struct {
	*storage.MemoryStore
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Delete(ctx context.Context, key string) error {
	return errStoreDown
}

func newTestComponents(t *testing.T, clock *testClock) (*correlation.Store, *idempotency.Cache, *transaction.Executor) {
	t.Helper()
	gen, err := secureid.New()
	require.NoError(t, err)

	contexts, err := correlation.NewStore(gen, correlation.Config{Clock: clock.Now})
	require.NoError(t, err)

	cache := idempotency.NewCache(idempotency.Config{Clock: clock.Now})

	executor, err := transaction.NewExecutor(gen, transaction.Config{Clock: clock.Now})
	require.NoError(t, err)

	return contexts, cache, executor
}

func TestManager_StartStop(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Clock:        clock.Now,
	})

	assert.Equal(t, Unhealthy, m.Health().Status, "stopped manager is unhealthy")

	m.Start(context.Background())
	m.Start(context.Background()) // double start is a no-op

	health := m.Health()
	assert.Equal(t, Healthy, health.Status)
	assert.Len(t, health.Components, 3)

	m.Stop()
	m.Stop() // idempotent
	assert.Equal(t, Unhealthy, m.Health().Status)
}

func TestManager_StartRunsInitialCleanup(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Interval:     time.Hour,
		Clock:        clock.Now,
	})
	m.Start(context.Background())
	defer m.Stop()

	health := m.Health()
	for _, cs := range health.Components {
		assert.Equal(t, int64(1), cs.Runs, "component %s", cs.Name)
	}
	assert.Equal(t, int64(1), m.Metrics().CleanupRuns)
}

func TestManager_SchedulerEvictsStaleContexts(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	_, err := contexts.CreateContext(context.Background(), "user_1", "")
	require.NoError(t, err)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Interval:     10 * time.Millisecond,
		Clock:        clock.Now,
	})
	m.Start(context.Background())
	defer m.Stop()

	clock.Advance(2 * time.Hour)

	require.Eventually(t, func() bool {
		return contexts.Stats().Evicted == 1
	}, 2*time.Second, 5*time.Millisecond, "scheduler should evict the inactive context")
}

func TestManager_ForceCleanup(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	_, err := contexts.CreateContext(context.Background(), "user_1", "")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Clock:        clock.Now,
	})

	report, err := m.ForceCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evictions["contexts"])
	assert.Contains(t, report.Evictions, "idempotency")
	assert.Contains(t, report.Evictions, "transactions")
}

func TestManager_HealthDegradedOnCleanupError(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, _, executor := newTestComponents(t, clock)

	// Cache whose durable deletes fail makes its cleanup error out.
	cache := idempotency.NewCache(idempotency.Config{
		Store: &failingStore{MemoryStore: storage.NewMemoryStore()},
		Clock: clock.Now,
	})
	_, err := cache.Execute(context.Background(), "idem_favorite_toggle_k1", "plc_1",
		func(ctx context.Context) (json.RawMessage, error) { return json.RawMessage(`{"ok":true}`), nil })
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Clock:        clock.Now,
	})
	m.Start(context.Background())
	defer m.Stop()

	_, err = m.ForceCleanup(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, Degraded, m.Health().Status)
}

func TestManager_MetricsAggregates(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	_, err := contexts.CreateContext(context.Background(), "user_1", "")
	require.NoError(t, err)

	m := NewManager(Config{
		Contexts:     contexts,
		Cache:        cache,
		Transactions: executor,
		Clock:        clock.Now,
	})
	m.Start(context.Background())
	defer m.Stop()

	clock.Advance(time.Minute)
	snap := m.Metrics()
	assert.Equal(t, int64(1), snap.Contexts.Created)
	assert.Equal(t, 1, snap.Contexts.Active)
	assert.GreaterOrEqual(t, snap.CleanupRuns, int64(1))
	assert.Equal(t, time.Minute.Milliseconds(), snap.UptimeMs)
}

type captureExporter struct {
	mu    sync.Mutex
	snaps []Snapshot
	close int
}

func (c *captureExporter) Export(ctx context.Context, snap Snapshot) error {
	c.mu.Lock()
	c.snaps = append(c.snaps, snap)
	c.mu.Unlock()
	return nil
}

func (c *captureExporter) Close() {
	c.mu.Lock()
	c.close++
	c.mu.Unlock()
}

func (c *captureExporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func TestManager_ExporterReceivesSnapshots(t *testing.T) {
	clock := &testClock{now: time.Now()}
	contexts, cache, executor := newTestComponents(t, clock)

	exp := &captureExporter{}
	m := NewManager(Config{
		Contexts:       contexts,
		Cache:          cache,
		Transactions:   executor,
		Interval:       time.Hour,
		ExportInterval: 10 * time.Millisecond,
		Exporter:       exp,
		Clock:          clock.Now,
	})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return exp.count() > 0
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	exp.mu.Lock()
	defer exp.mu.Unlock()
	assert.Equal(t, 1, exp.close, "Stop closes the exporter")
}
