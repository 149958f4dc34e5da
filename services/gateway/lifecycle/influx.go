// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxConfig configures the InfluxDB stats exporter.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Service tags every point. Default "gateway".
	Service string
}

// InfluxExporter writes Snapshot points to an InfluxDB bucket. Export
// failures are reported to the caller; the Manager logs them as
// warnings and keeps serving.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	service  string
}

var _ StatsExporter = (*InfluxExporter)(nil)

// NewInfluxExporter creates an exporter against the given InfluxDB
// instance. The connection is lazy; the first Export surfaces
// reachability problems.
func NewInfluxExporter(cfg InfluxConfig) *InfluxExporter {
	if cfg.Service == "" {
		cfg.Service = "gateway"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		service:  cfg.Service,
	}
}

// Export writes one gateway_stats point.
func (e *InfluxExporter) Export(ctx context.Context, snap Snapshot) error {
	p := influxdb2.NewPoint(
		"gateway_stats",
		map[string]string{
			"service": e.service,
		},
		map[string]interface{}{
			"contexts_active":        snap.Contexts.Active,
			"contexts_created":       snap.Contexts.Created,
			"contexts_evicted":       snap.Contexts.Evicted,
			"idempotency_active":     snap.Idempotency.Active,
			"idempotency_hits":       snap.Idempotency.Hits,
			"idempotency_misses":     snap.Idempotency.Misses,
			"idempotency_collisions": snap.Idempotency.Collisions,
			"transactions_size":      snap.Transactions.Size,
			"transactions_pending":   snap.Transactions.Pending,
			"transactions_completed": snap.Transactions.Completed,
			"transactions_failed":    snap.Transactions.Failed,
			"transactions_cancelled": snap.Transactions.Cancelled,
			"retry_waits":            snap.Transactions.RetryWaits,
			"cleanup_runs":           snap.CleanupRuns,
			"uptime_ms":              snap.UptimeMs,
		},
		time.Now(),
	)
	return e.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}
