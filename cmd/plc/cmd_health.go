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
	"time"

	"github.com/spf13/cobra"

	"github.com/robsotonet/petlovecommunity-core/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	healthJSONOutput bool // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// healthCmd reports the gateway's component health.
//
// # Description
//
// Queries GET /health and renders the per-component cleanup status:
// correlation contexts, idempotency records, and the transaction
// registry, plus overall uptime.
//
// # Examples
//
//	plc health           # Styled health report
//	plc health --json    # JSON output for scripting
//
// # Exit Codes
//
//	0 - Gateway healthy or degraded
//	1 - Gateway unhealthy or unreachable
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Display health of the gateway's reliability components",
	Long: `Queries the gateway health endpoint and reports per-component status.

A component is healthy when its last cleanup sweep succeeded, degraded
when any sweep failed, and the gateway reports unhealthy when it is not
running at all.

Examples:
  plc health           # Styled health report
  plc health --json    # JSON output for automation`,
	Run: runHealthCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	healthCmd.Flags().BoolVar(&healthJSONOutput, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// healthReport mirrors the gateway's /health payload.
type healthReport struct {
	Status     string `json:"status"`
	UptimeMs   int64  `json:"uptimeMs"`
	Components []struct {
		Name          string    `json:"name"`
		LastRun       time.Time `json:"lastRun"`
		LastEvictions int       `json:"lastEvictions"`
		LastError     string    `json:"lastError,omitempty"`
		Runs          int64     `json:"runs"`
	} `json:"components"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runHealthCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client := newGatewayClient(gatewayURL, requestTimeout)
	var report healthReport
	if _, err := client.getJSON(ctx, "/health", &report); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if healthJSONOutput {
		encoded, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(encoded))
	} else {
		renderHealthReport(report)
	}

	if report.Status == "unhealthy" {
		os.Exit(1)
	}
}

func renderHealthReport(report healthReport) {
	ux.Title("PetLove Gateway Health")
	ux.KeyValue("status", report.Status)
	ux.KeyValue("uptime", formatUptime(report.UptimeMs))

	for _, comp := range report.Components {
		icon := ux.IconSuccess
		note := fmt.Sprintf("%d runs", comp.Runs)
		if comp.LastError != "" {
			icon = ux.IconWarning
			note = comp.LastError
		}
		ux.StatusLine(comp.Name, icon, note)
	}
	if report.Status == "unhealthy" {
		ux.Error("gateway is not running its cleanup scheduler")
	}
}

func formatUptime(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.Round(time.Second).String()
}
