// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "plc", cfg.Namespace)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.InactivityWindow)
	assert.Equal(t, 60*time.Minute, cfg.IdempotencyExpiration)
	assert.Equal(t, 1000, cfg.TransactionCapacity)
	assert.False(t, cfg.DisableIdempotency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLC_LISTEN_ADDR", ":9999")
	t.Setenv("PLC_STORAGE_BACKEND", "badger")
	t.Setenv("PLC_BADGER_PATH", t.TempDir())
	t.Setenv("PLC_CLEANUP_INTERVAL", "30s")
	t.Setenv("PLC_UPSTREAM_RPS", "12.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "badger", cfg.StorageBackend)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 12.5, cfg.UpstreamRPS)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("PLC_STORAGE_BACKEND", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_RejectsBadUpstreamURL(t *testing.T) {
	t.Setenv("PLC_UPSTREAM_BASE_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_InfluxRequiresToken(t *testing.T) {
	t.Setenv("PLC_INFLUX_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLC_INFLUX_TOKEN")
}

func TestLoadPolicies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	doc := `policies:
  booking:
    maxRetries: 7
    baseDelay: 500ms
    maxDelay: 10s
  favorite_toggle:
    maxRetries: 1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	policies, err := LoadPolicies(path)
	require.NoError(t, err)

	assert.Equal(t, 7, policies[transaction.TypeBooking].MaxRetries)
	assert.Equal(t, 500*time.Millisecond, policies[transaction.TypeBooking].BaseDelay)
	assert.Equal(t, 10*time.Second, policies[transaction.TypeBooking].MaxDelay)
	assert.Equal(t, 1, policies[transaction.TypeFavoriteToggle].MaxRetries)

	// Types absent from the file keep compiled-in defaults.
	assert.Equal(t, 3, policies[transaction.TypeRSVP].MaxRetries)
}

func TestLoadPolicies_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicies(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("policies: [not, a, map"), 0o644))
		_, err := LoadPolicies(path)
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("policies:\n  booking:\n    baseDelay: fortnight\n"), 0o644))
		_, err := LoadPolicies(path)
		require.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("policies: {}\n"), 0o644))
		_, err := LoadPolicies(path)
		require.Error(t, err)
	})
}

func TestPolicyWatcher_HotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  booking:\n    maxRetries: 5\n"), 0o644))

	table := transaction.DefaultPolicyTable()
	w, err := NewPolicyWatcher(path, table, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("policies:\n  booking:\n    maxRetries: 9\n"), 0o644))

	require.Eventually(t, func() bool {
		return table.Lookup(transaction.TypeBooking).MaxRetries == 9
	}, 3*time.Second, 20*time.Millisecond)
}

func TestPolicyWatcher_BadEditKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  booking:\n    maxRetries: 5\n"), 0o644))

	table := transaction.DefaultPolicyTable()
	policies, err := LoadPolicies(path)
	require.NoError(t, err)
	table.Replace(policies)

	w, err := NewPolicyWatcher(path, table, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("policies: [broken"), 0o644))

	// Give the debounced reload a chance to fire, then confirm the
	// previous table survived.
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 5, table.Lookup(transaction.TypeBooking).MaxRetries)
}

func TestNewPolicyWatcher_Validation(t *testing.T) {
	_, err := NewPolicyWatcher("", transaction.DefaultPolicyTable(), nil)
	require.Error(t, err)

	_, err = NewPolicyWatcher("/tmp/policies.yaml", nil, nil)
	require.Error(t, err)
}
