// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a request.
// It is classified retryable: the transaction executor backs off and
// tries again once the cooldown admits probes.
var ErrCircuitOpen = errors.New("upstream circuit open")

// BreakerState is the state of the upstream circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows requests through normally.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects all requests immediately.
	BreakerOpen

	// BreakerHalfOpen allows limited probe requests to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// opening. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before admitting
	// probes. Default: 30s.
	Cooldown time.Duration

	// HalfOpenMaxRequests is the max in-flight probes while
	// half-open. Default: 2.
	HalfOpenMaxRequests int

	// SuccessThreshold is the number of consecutive probe successes
	// that close the breaker. Default: 2.
	SuccessThreshold int

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		Cooldown:            30 * time.Second,
		HalfOpenMaxRequests: 2,
		SuccessThreshold:    2,
	}
}

// Breaker guards the upstream with the closed/open/half-open circuit
// breaker pattern. Consecutive failures open it; after the cooldown a
// limited number of probes are admitted; probe successes close it
// again and any probe failure reopens it.
//
// Thread Safety: safe for concurrent use.
type Breaker struct {
	config BreakerConfig
	clock  func() time.Time

	mu                   sync.RWMutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	halfOpenRequests     int
	lastFailureTime      time.Time
	lastStateChange      time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 2
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Breaker{
		config:          config,
		clock:           clock,
		state:           BreakerClosed,
		lastStateChange: clock(),
	}
}

// Allow reports whether a request may proceed. While open, the
// cooldown elapsing transitions to half-open and admits the caller as
// the first probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if now.Sub(b.lastFailureTime) >= b.config.Cooldown {
			b.transitionTo(BreakerHalfOpen, now)
			b.halfOpenRequests = 1
			return true
		}
		return false

	case BreakerHalfOpen:
		if b.halfOpenRequests < b.config.HalfOpenMaxRequests {
			b.halfOpenRequests++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful upstream call. Enough probe
// successes while half-open close the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.consecutiveFailures = 0

	case BreakerHalfOpen:
		b.consecutiveSuccesses++
		b.consecutiveFailures = 0
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.transitionTo(BreakerClosed, b.clock())
		}
	}
}

// RecordFailure records a failed upstream call. Threshold failures
// open the breaker; any probe failure while half-open reopens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	b.lastFailureTime = now

	switch b.state {
	case BreakerClosed:
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.transitionTo(BreakerOpen, now)
		}

	case BreakerHalfOpen:
		b.transitionTo(BreakerOpen, now)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// transitionTo changes state. Must be called with the lock held.
func (b *Breaker) transitionTo(state BreakerState, now time.Time) {
	b.state = state
	b.lastStateChange = now
	b.consecutiveSuccesses = 0
	b.halfOpenRequests = 0
	if state == BreakerClosed {
		b.consecutiveFailures = 0
	}
}
