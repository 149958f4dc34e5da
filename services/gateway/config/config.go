// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates gateway configuration from the
// environment (PLC_ prefix) and the optional retry policy file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for config structs.
var validate = validator.New()

// Config is the full gateway configuration. All fields load from the
// environment; zero-config startup works with the compiled-in defaults.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `env:"PLC_LISTEN_ADDR" envDefault:":8080" validate:"required"`

	// Environment names the deployment environment.
	Environment string `env:"PLC_ENV" envDefault:"development"`

	// Namespace prefixes durable storage keys.
	Namespace string `env:"PLC_NAMESPACE" envDefault:"plc" validate:"required,alphanum"`

	// ====== Logging ======

	LogLevel string `env:"PLC_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogJSON  bool   `env:"PLC_LOG_JSON" envDefault:"true"`
	LogDir   string `env:"PLC_LOG_DIR"`

	// ====== Durable storage ======

	// StorageBackend selects the durable store: memory, badger, or redis.
	StorageBackend string `env:"PLC_STORAGE_BACKEND" envDefault:"memory" validate:"oneof=memory badger redis"`

	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string `env:"PLC_BADGER_PATH" envDefault:"/var/lib/plc/gateway"`

	// RedisURL configures the redis backend, redis://host:port/db form.
	RedisURL string `env:"PLC_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// ====== Upstream ======

	// UpstreamBaseURL is the platform API base.
	UpstreamBaseURL string `env:"PLC_UPSTREAM_BASE_URL" envDefault:"http://localhost:8090" validate:"required,url"`

	// UpstreamToken is the bearer token for upstream calls. Optional.
	UpstreamToken string `env:"PLC_UPSTREAM_TOKEN"`

	UpstreamTimeout time.Duration `env:"PLC_UPSTREAM_TIMEOUT" envDefault:"30s"`

	// UpstreamRPS and UpstreamBurst bound the outbound rate limiter.
	// RPS <= 0 disables limiting.
	UpstreamRPS   float64 `env:"PLC_UPSTREAM_RPS" envDefault:"50"`
	UpstreamBurst int     `env:"PLC_UPSTREAM_BURST" envDefault:"100"`

	// ====== Circuit breaker ======

	BreakerFailureThreshold int           `env:"PLC_BREAKER_FAILURE_THRESHOLD" envDefault:"5" validate:"min=1"`
	BreakerCooldown         time.Duration `env:"PLC_BREAKER_COOLDOWN" envDefault:"30s"`

	// ====== Reliability core ======

	// DisableIdempotency and DisableTransactions bypass the respective
	// pipeline stages. Debug switches, not for production.
	DisableIdempotency  bool `env:"PLC_DISABLE_IDEMPOTENCY" envDefault:"false"`
	DisableTransactions bool `env:"PLC_DISABLE_TRANSACTIONS" envDefault:"false"`

	// PoliciesFile points at the optional retry policy YAML. Empty
	// means compiled-in defaults only.
	PoliciesFile  string `env:"PLC_POLICIES_FILE"`
	WatchPolicies bool   `env:"PLC_WATCH_POLICIES" envDefault:"true"`

	CleanupInterval  time.Duration `env:"PLC_CLEANUP_INTERVAL" envDefault:"5m"`
	InactivityWindow time.Duration `env:"PLC_CONTEXT_INACTIVITY_WINDOW" envDefault:"1h"`

	// IdempotencyExpiration is the default record lifetime.
	IdempotencyExpiration time.Duration `env:"PLC_IDEMPOTENCY_EXPIRATION" envDefault:"60m"`

	// TransactionCapacity bounds the in-memory transaction registry.
	TransactionCapacity int `env:"PLC_TRANSACTION_CAPACITY" envDefault:"1000" validate:"min=1"`

	// ====== Telemetry ======

	TraceExporter  string `env:"OTEL_TRACES_EXPORTER" envDefault:"otlp"`
	MetricExporter string `env:"OTEL_METRICS_EXPORTER" envDefault:"prometheus"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	// ====== Stats export ======

	InfluxEnabled bool   `env:"PLC_INFLUX_ENABLED" envDefault:"false"`
	InfluxURL     string `env:"PLC_INFLUX_URL" envDefault:"http://localhost:8086"`
	InfluxToken   string `env:"PLC_INFLUX_TOKEN"`
	InfluxOrg     string `env:"PLC_INFLUX_ORG" envDefault:"petlove"`
	InfluxBucket  string `env:"PLC_INFLUX_BUCKET" envDefault:"gateway"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints beyond what env parsing enforces.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.StorageBackend == "badger" && c.BadgerPath == "" {
		return fmt.Errorf("validate config: badger backend requires PLC_BADGER_PATH")
	}
	if c.InfluxEnabled && c.InfluxToken == "" {
		return fmt.Errorf("validate config: influx export requires PLC_INFLUX_TOKEN")
	}
	return nil
}
