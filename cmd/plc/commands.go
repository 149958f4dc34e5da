// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robsotonet/petlovecommunity-core/pkg/ux"
)

const cliVersion = "1.0.0"

// --- Global Command Variables ---
var (
	gatewayURL       string        // Base URL of the gateway API
	requestTimeout   time.Duration // Per-request timeout for API calls
	personalityLevel string        // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "plc",
		Short: "A cli to operate the PetLove Community reliability gateway",
		Long: `plc is a tool for inspecting and operating the PetLove Community
gateway: health checks, reliability stats, cleanup sweeps, and
configuration bootstrap.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the plc cli version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cliVersion)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich pet theming), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", defaultGatewayURL(),
		"Gateway base URL (also PLC_GATEWAY_URL)")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 10*time.Second,
		"Per-request timeout for gateway API calls")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultGatewayURL() string {
	if url := os.Getenv("PLC_GATEWAY_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}
