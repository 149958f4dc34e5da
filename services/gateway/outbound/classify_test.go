// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, false},
		{201, false},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{408, true},
		{409, true},
		{422, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableStatus(tt.code))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped cancellation", fmt.Errorf("call: %w", context.Canceled), false},
		{"status 503", &StatusError{StatusCode: 503}, true},
		{"status 429", &StatusError{StatusCode: 429}, true},
		{"status 404", &StatusError{StatusCode: 404}, false},
		{"status 400", &StatusError{StatusCode: 400}, false},
		{"wrapped status", fmt.Errorf("call: %w", &StatusError{StatusCode: 500}), true},
		{"breaker open", ErrCircuitOpen, true},
		{"transport failure", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Method: "POST", URL: "https://api.example.com/v1/bookings", StatusCode: 502, Body: "bad gateway"}
	assert.Contains(t, err.Error(), "POST")
	assert.Contains(t, err.Error(), "502")
}
