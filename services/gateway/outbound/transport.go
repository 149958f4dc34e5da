// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
)

type contextKey int

const correlationIDKey contextKey = iota

// WithCorrelationID returns a context carrying the active correlation
// id, read back by the Transport when stamping outbound headers.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFrom extracts the correlation id placed by
// WithCorrelationID.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// HeaderSource supplies the canonical correlation header set for an
// id. Satisfied by the correlation store.
type HeaderSource interface {
	RequestHeaders(ctx context.Context, correlationID string) (http.Header, error)
}

// TransportConfig configures a Transport. All fields are optional.
type TransportConfig struct {
	// Base is the underlying round tripper. Default
	// http.DefaultTransport.
	Base http.RoundTripper

	// Headers resolves correlation headers for stamping.
	Headers HeaderSource

	// Limiter applies upstream politeness. Nil disables limiting.
	Limiter *rate.Limiter

	// Breaker guards the upstream. Nil disables circuit breaking.
	Breaker *Breaker

	// Logger for request start/end events.
	Logger *logging.Logger
}

// Transport is an http.RoundTripper that stamps correlation headers on
// outbound requests, applies the rate limiter and circuit breaker, and
// emits request start/end log events tagged with the correlation id.
//
// Thread Safety: safe for concurrent use.
type Transport struct {
	base    http.RoundTripper
	headers HeaderSource
	limiter *rate.Limiter
	breaker *Breaker
	logger  *logging.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport creates a Transport.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	return &Transport{
		base:    cfg.Base,
		headers: cfg.Headers,
		limiter: cfg.Limiter,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
	}
}

// RoundTrip implements http.RoundTripper.
//
// The incoming request is cloned before headers are stamped, per the
// RoundTripper contract. A breaker rejection returns ErrCircuitOpen
// without touching the network; upstream 5xx responses and transport
// errors feed the breaker as failures.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if t.breaker != nil && !t.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	out := req.Clone(ctx)
	correlationID, _ := CorrelationIDFrom(ctx)
	if correlationID != "" && t.headers != nil {
		if h, err := t.headers.RequestHeaders(ctx, correlationID); err == nil {
			for name, values := range h {
				out.Header[name] = values
			}
		} else {
			t.logger.Warn("correlation headers unavailable",
				"correlation_id", correlationID, "error", err.Error())
		}
	}

	start := time.Now()
	t.logger.Debug("outbound request started",
		"method", out.Method,
		"url", out.URL.String(),
		"correlation_id", correlationID)

	resp, err := t.base.RoundTrip(out)

	elapsed := time.Since(start)
	if err != nil {
		if t.breaker != nil {
			t.breaker.RecordFailure()
		}
		t.logger.Warn("outbound request failed",
			"method", out.Method,
			"url", out.URL.String(),
			"correlation_id", correlationID,
			"duration_ms", elapsed.Milliseconds(),
			"error", err.Error())
		return nil, err
	}

	if t.breaker != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			t.breaker.RecordFailure()
		} else {
			t.breaker.RecordSuccess()
		}
	}
	t.logger.Debug("outbound request finished",
		"method", out.Method,
		"url", out.URL.String(),
		"status", resp.StatusCode,
		"correlation_id", correlationID,
		"duration_ms", elapsed.Milliseconds())
	return resp, nil
}
