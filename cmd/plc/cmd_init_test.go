// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"
)

// =============================================================================
// renderEnvFile Tests
// =============================================================================

func TestRenderEnvFile_MemoryBackend(t *testing.T) {
	content := renderEnvFile(gatewayAnswers{
		ListenAddr:     ":8080",
		StorageBackend: "memory",
		UpstreamURL:    "http://localhost:8090",
	})

	for _, want := range []string{
		"PLC_LISTEN_ADDR=:8080",
		"PLC_STORAGE_BACKEND=memory",
		"PLC_UPSTREAM_BASE_URL=http://localhost:8090",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("env file missing %q:\n%s", want, content)
		}
	}
	for _, unwanted := range []string{"PLC_BADGER_PATH", "PLC_REDIS_URL", "PLC_UPSTREAM_TOKEN", "PLC_INFLUX"} {
		if strings.Contains(content, unwanted) {
			t.Errorf("env file has unexpected %q:\n%s", unwanted, content)
		}
	}
}

func TestRenderEnvFile_BadgerBackend(t *testing.T) {
	content := renderEnvFile(gatewayAnswers{
		ListenAddr:     ":8080",
		StorageBackend: "badger",
		BadgerPath:     "/data/plc",
		UpstreamURL:    "http://localhost:8090",
	})

	if !strings.Contains(content, "PLC_BADGER_PATH=/data/plc") {
		t.Errorf("env file missing badger path:\n%s", content)
	}
	if strings.Contains(content, "PLC_REDIS_URL") {
		t.Errorf("env file has redis settings for badger backend:\n%s", content)
	}
}

func TestRenderEnvFile_SecretsAndInflux(t *testing.T) {
	content := renderEnvFile(gatewayAnswers{
		ListenAddr:     ":8080",
		StorageBackend: "redis",
		RedisURL:       "redis://cache:6379/1",
		UpstreamURL:    "https://api.petlovecommunity.org",
		UpstreamToken:  "s3cret",
		InfluxEnabled:  true,
		InfluxURL:      "http://influx:8086",
		InfluxToken:    "influx-token",
	})

	for _, want := range []string{
		"PLC_REDIS_URL=redis://cache:6379/1",
		"PLC_UPSTREAM_TOKEN=s3cret",
		"PLC_INFLUX_ENABLED=true",
		"PLC_INFLUX_URL=http://influx:8086",
		"PLC_INFLUX_TOKEN=influx-token",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("env file missing %q:\n%s", want, content)
		}
	}
}

// =============================================================================
// validateHTTPURL Tests
// =============================================================================

func TestValidateHTTPURL(t *testing.T) {
	valid := []string{
		"http://localhost:8090",
		"https://api.petlovecommunity.org",
		"http://10.0.0.5:8080",
	}
	for _, u := range valid {
		if err := validateHTTPURL(u); err != nil {
			t.Errorf("validateHTTPURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{"", "localhost:8090", "not a url", "/just/a/path"}
	for _, u := range invalid {
		if err := validateHTTPURL(u); err == nil {
			t.Errorf("validateHTTPURL(%q) = nil, want error", u)
		}
	}
}
