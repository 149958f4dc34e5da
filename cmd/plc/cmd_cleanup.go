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
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/robsotonet/petlovecommunity-core/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	cleanupJSONOutput bool // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// cleanupCmd triggers a synchronous cleanup sweep on the gateway.
//
// # Description
//
// Posts to /v1/system/cleanup, which evicts stale correlation
// contexts, expired idempotency records, and finished transactions,
// and reports per-component eviction counts.
//
// # Examples
//
//	plc cleanup           # Sweep and report evictions
//	plc cleanup --json    # JSON output for scripting
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a cleanup sweep across the gateway's reliability components",
	Run:   runCleanupCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupJSONOutput, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// cleanupReport mirrors the gateway's /v1/system/cleanup payload.
type cleanupReport struct {
	Evictions  map[string]int `json:"evictions"`
	DurationMs int64          `json:"durationMs"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runCleanupCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client := newGatewayClient(gatewayURL, requestTimeout)
	var report cleanupReport
	status, err := client.postJSON(ctx, "/v1/system/cleanup", &report)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if cleanupJSONOutput {
		encoded, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(encoded))
	} else {
		renderCleanupReport(report)
	}

	if status != http.StatusOK {
		ux.Warning("some components reported cleanup errors")
		os.Exit(1)
	}
}

func renderCleanupReport(report cleanupReport) {
	ux.Title("Cleanup Sweep")
	total := 0
	for component, evicted := range report.Evictions {
		ux.KeyValue(component, fmt.Sprintf("%d evicted", evicted))
		total += evicted
	}
	ux.Success(fmt.Sprintf("evicted %d entries in %dms", total, report.DurationMs))
}
