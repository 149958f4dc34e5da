// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(clock *time.Time) *Breaker {
	return NewBreaker(BreakerConfig{
		FailureThreshold:    3,
		Cooldown:            time.Minute,
		HalfOpenMaxRequests: 2,
		SuccessThreshold:    2,
		Clock:               func() time.Time { return *clock },
	})
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	assert.Equal(t, BreakerClosed, b.State())
	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.Equal(t, BreakerClosed, b.State())
	}
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CooldownAdmitsProbes(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.Allow())

	now = now.Add(time.Minute + time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed, first probe admitted")
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.True(t, b.Allow(), "second probe within the half-open budget")
	assert.False(t, b.Allow(), "probe budget exhausted")
}

func TestBreaker_ProbeSuccessesClose(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
