// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/robsotonet/petlovecommunity-core/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	initOutputPath string // Where to write the env file
	initForce      bool   // Overwrite an existing env file
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// configInitCmd walks through gateway configuration interactively.
//
// # Description
//
// Runs a short form covering the settings most deployments change:
// listen address, durable storage backend, upstream API location, and
// credentials. Writes the answers as PLC_* variables to a .env file
// the gateway loads at startup.
//
// # Examples
//
//	plc config-init                  # Write ./.env interactively
//	plc config-init -o /etc/plc.env  # Custom location
//	plc config-init --force          # Overwrite an existing file
//
// # Limitations
//
//   - Requires an interactive terminal
var configInitCmd = &cobra.Command{
	Use:   "config-init",
	Short: "Interactively generate a gateway .env file",
	Long: `Walks through the gateway settings most deployments change and
writes them as PLC_* environment variables to a .env file.

Settings not covered by the form keep their compiled-in defaults; see
the gateway's config package for the full list.

Examples:
  plc config-init                  # Write ./.env interactively
  plc config-init -o /etc/plc.env  # Custom location
  plc config-init --force          # Overwrite an existing file`,
	RunE: runConfigInitCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	configInitCmd.Flags().StringVarP(&initOutputPath, "output", "o", ".env",
		"Path for the generated env file")
	configInitCmd.Flags().BoolVar(&initForce, "force", false,
		"Overwrite the env file if it already exists")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// gatewayAnswers holds the form results.
type gatewayAnswers struct {
	ListenAddr     string
	StorageBackend string
	BadgerPath     string
	RedisURL       string
	UpstreamURL    string
	UpstreamToken  string
	InfluxEnabled  bool
	InfluxURL      string
	InfluxToken    string
}

func runConfigInitCommand(cmd *cobra.Command, args []string) error {
	if !ux.IsInteractive() {
		return fmt.Errorf("config-init needs an interactive terminal; write %s by hand for scripted setups", initOutputPath)
	}
	if _, err := os.Stat(initOutputPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists, re-run with --force to overwrite", initOutputPath)
	}

	answers := gatewayAnswers{
		ListenAddr:     ":8080",
		StorageBackend: "memory",
		BadgerPath:     "/var/lib/plc/gateway",
		RedisURL:       "redis://localhost:6379/0",
		UpstreamURL:    "http://localhost:8090",
		InfluxURL:      "http://localhost:8086",
	}
	if err := configForm(&answers).Run(); err != nil {
		return err
	}

	content := renderEnvFile(answers)
	if err := os.WriteFile(initOutputPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", initOutputPath, err)
	}
	ux.Success(fmt.Sprintf("wrote %s", initOutputPath))
	ux.Muted("start the gateway in the same directory to pick it up")
	return nil
}

func configForm(answers *gatewayAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Bind address for the gateway HTTP server").
				Value(&answers.ListenAddr),
			huh.NewSelect[string]().
				Title("Durable storage backend").
				Description("Where correlation contexts and idempotency records persist").
				Options(
					huh.NewOption("In-memory (single node, no persistence)", "memory"),
					huh.NewOption("BadgerDB (embedded, on-disk)", "badger"),
					huh.NewOption("Redis (shared across replicas)", "redis"),
				).
				Value(&answers.StorageBackend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("BadgerDB path").
				Value(&answers.BadgerPath),
		).WithHideFunc(func() bool { return answers.StorageBackend != "badger" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Redis URL").
				Value(&answers.RedisURL),
		).WithHideFunc(func() bool { return answers.StorageBackend != "redis" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Upstream API base URL").
				Description("The PetLove platform API the gateway fronts").
				Validate(validateHTTPURL).
				Value(&answers.UpstreamURL),
			huh.NewInput().
				Title("Upstream bearer token").
				Description("Leave empty if the upstream is unauthenticated").
				EchoMode(huh.EchoModePassword).
				Value(&answers.UpstreamToken),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Export stats to InfluxDB?").
				Value(&answers.InfluxEnabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("InfluxDB URL").
				Validate(validateHTTPURL).
				Value(&answers.InfluxURL),
			huh.NewInput().
				Title("InfluxDB token").
				EchoMode(huh.EchoModePassword).
				Value(&answers.InfluxToken),
		).WithHideFunc(func() bool { return !answers.InfluxEnabled }),
	)
}

func validateHTTPURL(s string) error {
	parsed, err := url.Parse(s)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("need a full URL like http://host:port")
	}
	return nil
}

// renderEnvFile turns the answers into a .env file. Only settings the
// form collected are written; everything else keeps gateway defaults.
func renderEnvFile(answers gatewayAnswers) string {
	var b strings.Builder
	b.WriteString("# PetLove Community gateway configuration\n")
	b.WriteString("# Generated by plc config-init\n\n")

	writeVar := func(key, value string) {
		fmt.Fprintf(&b, "%s=%s\n", key, value)
	}

	writeVar("PLC_LISTEN_ADDR", answers.ListenAddr)
	writeVar("PLC_STORAGE_BACKEND", answers.StorageBackend)
	switch answers.StorageBackend {
	case "badger":
		writeVar("PLC_BADGER_PATH", answers.BadgerPath)
	case "redis":
		writeVar("PLC_REDIS_URL", answers.RedisURL)
	}
	writeVar("PLC_UPSTREAM_BASE_URL", answers.UpstreamURL)
	if answers.UpstreamToken != "" {
		writeVar("PLC_UPSTREAM_TOKEN", answers.UpstreamToken)
	}
	if answers.InfluxEnabled {
		writeVar("PLC_INFLUX_ENABLED", "true")
		writeVar("PLC_INFLUX_URL", answers.InfluxURL)
		writeVar("PLC_INFLUX_TOKEN", answers.InfluxToken)
	}
	return b.String()
}
