// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robsotonet/petlovecommunity-core/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	statsJSONOutput bool // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// statsCmd shows the gateway's reliability counters.
//
// # Description
//
// Queries GET /v1/system/stats and renders the aggregated counters for
// correlation contexts, the idempotency cache, and the transaction
// registry.
//
// # Examples
//
//	plc stats            # Styled stats report
//	plc stats --json     # JSON output for scripting
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reliability counters for contexts, idempotency, and transactions",
	Run:   runStatsCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// systemStats mirrors the gateway's /v1/system/stats payload.
type systemStats struct {
	Contexts struct {
		Active  int   `json:"active"`
		Created int64 `json:"created"`
		Evicted int64 `json:"evicted"`
	} `json:"contexts"`
	Idempotency struct {
		Total      int   `json:"total"`
		Active     int   `json:"active"`
		Expired    int   `json:"expired"`
		Hits       int64 `json:"hits"`
		Misses     int64 `json:"misses"`
		Collisions int64 `json:"collisions"`
	} `json:"idempotency"`
	Transactions struct {
		Size       int   `json:"size"`
		Pending    int   `json:"pending"`
		Processing int   `json:"processing"`
		Completed  int   `json:"completed"`
		Failed     int   `json:"failed"`
		Cancelled  int   `json:"cancelled"`
		RetryWaits int64 `json:"retryWaits"`
	} `json:"transactions"`
	UptimeMs    int64 `json:"uptimeMs"`
	CleanupRuns int64 `json:"cleanupRuns"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runStatsCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client := newGatewayClient(gatewayURL, requestTimeout)
	var stats systemStats
	if _, err := client.getJSON(ctx, "/v1/system/stats", &stats); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if statsJSONOutput {
		encoded, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(encoded))
		return
	}
	renderSystemStats(stats)
}

func renderSystemStats(stats systemStats) {
	ux.Title("PetLove Gateway Stats")
	ux.KeyValue("uptime", formatUptime(stats.UptimeMs))
	ux.KeyValue("cleanup runs", fmt.Sprintf("%d", stats.CleanupRuns))

	ux.Muted("contexts")
	ux.KeyValue("active", fmt.Sprintf("%d", stats.Contexts.Active))
	ux.KeyValue("created", fmt.Sprintf("%d", stats.Contexts.Created))
	ux.KeyValue("evicted", fmt.Sprintf("%d", stats.Contexts.Evicted))

	ux.Muted("idempotency")
	ux.KeyValue("active records", fmt.Sprintf("%d", stats.Idempotency.Active))
	ux.KeyValue("hits", fmt.Sprintf("%d", stats.Idempotency.Hits))
	ux.KeyValue("misses", fmt.Sprintf("%d", stats.Idempotency.Misses))
	ux.KeyValue("collisions", fmt.Sprintf("%d", stats.Idempotency.Collisions))
	ux.KeyValue("hit rate", formatHitRate(stats.Idempotency.Hits, stats.Idempotency.Misses))

	ux.Muted("transactions")
	ux.KeyValue("in registry", fmt.Sprintf("%d", stats.Transactions.Size))
	ux.KeyValue("completed", fmt.Sprintf("%d", stats.Transactions.Completed))
	ux.KeyValue("failed", fmt.Sprintf("%d", stats.Transactions.Failed))
	ux.KeyValue("cancelled", fmt.Sprintf("%d", stats.Transactions.Cancelled))
	ux.KeyValue("retry waits", fmt.Sprintf("%d", stats.Transactions.RetryWaits))
}

func formatHitRate(hits, misses int64) string {
	total := hits + misses
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(hits)/float64(total)*100)
}
