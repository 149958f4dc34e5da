// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lifecycle supervises the reliability components: it owns the
// periodic cleanup scheduler for the correlation store, idempotency
// cache, and transaction registry, aggregates their health, and
// optionally exports stats snapshots. It holds no business data.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

// DefaultInterval is the cleanup scheduler cadence.
const DefaultInterval = 5 * time.Minute

// HealthState is the aggregate health of the managed components.
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// Cleaner is anything the scheduler sweeps periodically.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// ComponentStatus is one component's view in the health report.
type ComponentStatus struct {
	Name          string    `json:"name"`
	LastRun       time.Time `json:"lastRun"`
	LastEvictions int       `json:"lastEvictions"`
	LastError     string    `json:"lastError,omitempty"`
	Runs          int64     `json:"runs"`
}

// HealthReport is the aggregate health of the manager.
type HealthReport struct {
	Status     HealthState       `json:"status"`
	UptimeMs   int64             `json:"uptimeMs"`
	Components []ComponentStatus `json:"components"`
}

// CleanupReport summarizes one forced cleanup pass.
type CleanupReport struct {
	Evictions  map[string]int `json:"evictions"`
	DurationMs int64          `json:"durationMs"`
}

// Snapshot aggregates component stats for /v1/system/stats and the
// stats exporter.
type Snapshot struct {
	Contexts     correlation.Stats `json:"contexts"`
	Idempotency  idempotency.Stats `json:"idempotency"`
	Transactions transaction.Stats `json:"transactions"`
	UptimeMs     int64             `json:"uptimeMs"`
	CleanupRuns  int64             `json:"cleanupRuns"`
}

// StatsExporter receives periodic snapshots. Export failures degrade
// to warnings; they never affect serving.
type StatsExporter interface {
	Export(ctx context.Context, snap Snapshot) error
	Close()
}

// Config configures a Manager.
type Config struct {
	// Contexts, Cache, and Transactions are the supervised
	// components. Nil components are skipped.
	Contexts     *correlation.Store
	Cache        *idempotency.Cache
	Transactions *transaction.Executor

	// Interval is the cleanup cadence. Default 5 minutes.
	Interval time.Duration

	// Logger for scheduler events.
	Logger *logging.Logger

	// Exporter, when set, receives a Snapshot each ExportInterval.
	Exporter StatsExporter

	// ExportInterval defaults to Interval.
	ExportInterval time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

type target struct {
	name    string
	cleaner Cleaner
}

type componentState struct {
	lastRun       time.Time
	lastEvictions int
	lastErr       error
	runs          int64
}

// Manager owns the cleanup scheduler goroutine and the optional stats
// exporter loop.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	contexts     *correlation.Store
	cache        *idempotency.Cache
	transactions *transaction.Executor
	targets      []target
	interval     time.Duration
	exportEvery  time.Duration
	logger       *logging.Logger
	exporter     StatsExporter
	clock        func() time.Time

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	states    map[string]*componentState

	cleanupRuns atomic.Int64
}

// NewManager creates a Manager over the given components.
func NewManager(cfg Config) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = cfg.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Manager{
		contexts:     cfg.Contexts,
		cache:        cfg.Cache,
		transactions: cfg.Transactions,
		interval:     cfg.Interval,
		exportEvery:  cfg.ExportInterval,
		logger:       cfg.Logger,
		exporter:     cfg.Exporter,
		clock:        cfg.Clock,
		states:       make(map[string]*componentState),
	}
	if cfg.Contexts != nil {
		m.targets = append(m.targets, target{name: "contexts", cleaner: cfg.Contexts})
	}
	if cfg.Cache != nil {
		m.targets = append(m.targets, target{name: "idempotency", cleaner: cfg.Cache})
	}
	if cfg.Transactions != nil {
		m.targets = append(m.targets, target{name: "transactions", cleaner: cfg.Transactions})
	}
	for _, t := range m.targets {
		m.states[t.name] = &componentState{}
	}
	return m
}

// Start launches the cleanup scheduler (and exporter loop, when
// configured) and runs an initial cleanup. Double-start is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.startedAt = m.clock()
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	m.logger.Info("lifecycle manager started",
		"interval", m.interval.String(),
		"components", len(m.targets))

	m.runCleanups(ctx)
	go m.loop(ctx, stopCh, doneCh)
}

// Stop signals the scheduler and exporter loops and waits for them.
// Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
	if m.exporter != nil {
		m.exporter.Close()
	}
	m.logger.Info("lifecycle manager stopped")
}

func (m *Manager) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	cleanupTicker := time.NewTicker(m.interval)
	defer cleanupTicker.Stop()

	var exportC <-chan time.Time
	if m.exporter != nil {
		exportTicker := time.NewTicker(m.exportEvery)
		defer exportTicker.Stop()
		exportC = exportTicker.C
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			m.runCleanups(ctx)
		case <-exportC:
			m.export(ctx)
		}
	}
}

func (m *Manager) runCleanups(ctx context.Context) {
	m.cleanupRuns.Add(1)
	for _, t := range m.targets {
		start := m.clock()
		n, err := t.cleaner.Cleanup(ctx)
		elapsed := time.Since(start)

		m.mu.Lock()
		st := m.states[t.name]
		st.lastRun = start
		st.lastEvictions = n
		st.lastErr = err
		st.runs++
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("component cleanup failed",
				"component", t.name,
				"error", err.Error(),
				"duration_ms", elapsed.Milliseconds())
			continue
		}
		m.logger.Debug("component cleanup finished",
			"component", t.name,
			"evictions", n,
			"duration_ms", elapsed.Milliseconds())
	}
}

// ForceCleanup runs every component's cleanup synchronously and in
// parallel, for emergency use.
func (m *Manager) ForceCleanup(ctx context.Context) (CleanupReport, error) {
	start := m.clock()
	report := CleanupReport{Evictions: make(map[string]int, len(m.targets))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range m.targets {
		t := t
		g.Go(func() error {
			n, err := t.cleaner.Cleanup(gctx)
			mu.Lock()
			report.Evictions[t.name] = n
			mu.Unlock()
			if err != nil {
				m.recordError(t.name, err)
			}
			return err
		})
	}
	err := g.Wait()
	report.DurationMs = time.Since(start).Milliseconds()
	m.cleanupRuns.Add(1)
	return report, err
}

func (m *Manager) recordError(name string, err error) {
	m.mu.Lock()
	if st, ok := m.states[name]; ok {
		st.lastErr = err
	}
	m.mu.Unlock()
}

// Health aggregates component status: unhealthy when the manager is
// stopped, degraded when any component's last cleanup errored, healthy
// otherwise.
func (m *Manager) Health() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := HealthReport{Status: Healthy}
	if !m.running {
		report.Status = Unhealthy
	} else {
		report.UptimeMs = m.clock().Sub(m.startedAt).Milliseconds()
	}

	for _, t := range m.targets {
		st := m.states[t.name]
		cs := ComponentStatus{
			Name:          t.name,
			LastRun:       st.lastRun,
			LastEvictions: st.lastEvictions,
			Runs:          st.runs,
		}
		if st.lastErr != nil {
			cs.LastError = st.lastErr.Error()
			if report.Status == Healthy {
				report.Status = Degraded
			}
		}
		report.Components = append(report.Components, cs)
	}
	return report
}

// Metrics returns the aggregate stats snapshot.
func (m *Manager) Metrics() Snapshot {
	snap := Snapshot{CleanupRuns: m.cleanupRuns.Load()}
	if m.contexts != nil {
		snap.Contexts = m.contexts.Stats()
	}
	if m.cache != nil {
		snap.Idempotency = m.cache.Stats()
	}
	if m.transactions != nil {
		snap.Transactions = m.transactions.Stats()
	}
	m.mu.Lock()
	if m.running {
		snap.UptimeMs = m.clock().Sub(m.startedAt).Milliseconds()
	}
	m.mu.Unlock()
	return snap
}

func (m *Manager) export(ctx context.Context) {
	if err := m.exporter.Export(ctx, m.Metrics()); err != nil {
		m.logger.Warn("stats export failed", "error", err.Error())
	}
}
