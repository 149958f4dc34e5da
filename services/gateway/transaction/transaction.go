// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transaction wraps operations in a tracked, retryable
// execution record with a type-specific exponential-backoff policy.
//
// A Transaction here is not a database transaction: it identifies one
// logical mutating operation's retry sequence. The state machine is
//
//	pending -> processing -> {completed | failed}
//
// with the transaction parked back in pending between attempts (the
// cancellation window) and pending -> cancelled as the only other
// legal edge. Terminal statuses never transition again.
package transaction

// Status is a transaction's position in the state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Transaction is one tracked execution attempt group. The same ID
// persists across every retry of the logical operation.
type Transaction struct {
	ID             string `json:"id"`
	CorrelationID  string `json:"correlationId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	Type           Type   `json:"type"`
	Status         Status `json:"status"`
	RetryCount     int    `json:"retryCount"`
	CreatedAtMs    int64  `json:"createdAtMs"`
	UpdatedAtMs    int64  `json:"updatedAtMs"`
}
