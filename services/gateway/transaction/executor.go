// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
)

// TerminalRetention is how long terminal transactions stay in the
// registry before Cleanup drops them.
const TerminalRetention = 24 * time.Hour

// DefaultCapacity bounds the registry; the oldest entry is evicted
// when a new transaction would exceed it.
const DefaultCapacity = 1000

// ErrCancelled is returned by Execute when the transaction was
// cancelled while parked between attempts.
var ErrCancelled = errors.New("transaction cancelled")

// Operation is the unit of work the executor drives through the retry
// loop.
type Operation func(ctx context.Context) (json.RawMessage, error)

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	Size       int   `json:"size"`
	Pending    int   `json:"pending"`
	Processing int   `json:"processing"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Cancelled  int   `json:"cancelled"`
	RetryWaits int64 `json:"retryWaits"`
}

// Config configures an Executor. Only the generator (passed to
// NewExecutor) is required.
type Config struct {
	// Policies supplies per-type retry limits. Default: the
	// compiled-in table.
	Policies *PolicyTable

	// Classifier reports whether an operation error is retryable.
	// Default: every error is retryable.
	Classifier func(error) bool

	// Logger for transaction lifecycle events.
	Logger *logging.Logger

	// Capacity bounds the registry. Default 1000.
	Capacity int

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// held pairs a registry entry with its cancellation signal. Execute
// keeps its own reference, so an evicted transaction still finishes
// its run; it merely stops being visible to lookups.
type held struct {
	txn      *Transaction
	cancelCh chan struct{}
}

// Executor drives operations through the transaction state machine
// with typed exponential-backoff retry.
//
// Thread Safety: all methods are safe for concurrent use.
type Executor struct {
	gen       *secureid.Generator
	policies  *PolicyTable
	retryable func(error) bool
	logger    *logging.Logger
	capacity  int
	clock     func() time.Time

	mu       sync.Mutex
	registry map[string]*held
	order    []string // insertion order, for oldest-first eviction

	retryWaits atomic.Int64
}

// NewExecutor creates an Executor backed by the given id generator.
func NewExecutor(gen *secureid.Generator, cfg Config) (*Executor, error) {
	if gen == nil {
		return nil, errors.New("generator must not be nil")
	}
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicyTable()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = func(error) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Executor{
		gen:       gen,
		policies:  cfg.Policies,
		retryable: cfg.Classifier,
		logger:    cfg.Logger,
		capacity:  cfg.Capacity,
		clock:     cfg.Clock,
		registry:  make(map[string]*held),
	}, nil
}

// Execute runs op under a new transaction record.
//
// Description:
//
//	Creates the transaction in pending, transitions it to processing,
//	and invokes op. On success the transaction completes and the
//	result returns. On a retryable failure with retries remaining the
//	transaction parks back in pending (the cancellation window), waits
//	min(BaseDelay * 2^retryCount, MaxDelay), then re-enters processing
//	with an incremented retry count. A permanent error, or exhaustion
//	of the type's retry budget, transitions to failed and returns the
//	operation's last error verbatim, so errors.Is/As still see the
//	original. The backoff wait selects on ctx, the transaction's
//	cancel signal, and the timer.
//
// Inputs:
//
//	ctx - Cancels the backoff wait and is passed to op. An in-flight
//	    attempt is never interrupted by the executor itself.
//	typ - Operation category; selects the retry policy.
//	correlationID - Correlation linkage, carried on the record.
//	idempotencyKey - Idempotency linkage, carried on the record.
//	op - The operation to drive.
//
// Outputs:
//
//	json.RawMessage - op's result on (eventual) success.
//	error - op's last error verbatim on exhaustion or permanent
//	    failure; ErrCancelled if cancelled between attempts; ctx.Err()
//	    if the context ended during a backoff wait.
func (e *Executor) Execute(ctx context.Context, typ Type, correlationID, idempotencyKey string, op Operation) (json.RawMessage, error) {
	id, err := e.gen.NewTransactionID()
	if err != nil {
		return nil, err
	}
	policy := e.policies.Lookup(typ)
	now := e.clock().UnixMilli()
	h := e.register(&Transaction{
		ID:             id,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		Type:           typ,
		Status:         StatusPending,
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
	})
	e.logger.Debug("transaction started",
		"transaction_id", id,
		"correlation_id", correlationID,
		"type", string(typ))

	var lastErr error
	for attempt := 0; ; attempt++ {
		if !e.transition(h, StatusProcessing) {
			return nil, ErrCancelled
		}

		result, err := op(ctx)
		if err == nil {
			e.transition(h, StatusCompleted)
			e.logger.Debug("transaction completed",
				"transaction_id", id,
				"correlation_id", correlationID,
				"retry_count", attempt)
			return result, nil
		}
		lastErr = err

		if !e.retryable(err) || attempt >= policy.MaxRetries {
			e.transition(h, StatusFailed)
			e.logger.Warn("transaction failed",
				"transaction_id", id,
				"correlation_id", correlationID,
				"retry_count", attempt,
				"error", err.Error())
			return nil, lastErr
		}

		// Park in pending for the backoff wait; this is the window in
		// which Cancel can still win.
		e.transition(h, StatusPending)
		delay := policy.Backoff(attempt)
		e.logger.Warn("transaction retry scheduled",
			"transaction_id", id,
			"correlation_id", correlationID,
			"retry_count", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error())

		e.retryWaits.Add(1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.retryWaits.Add(-1)
			e.cancelParked(h)
			return nil, ctx.Err()
		case <-h.cancelCh:
			timer.Stop()
			e.retryWaits.Add(-1)
			return nil, ErrCancelled
		case <-timer.C:
			e.retryWaits.Add(-1)
		}

		e.mu.Lock()
		if h.txn.Status.Terminal() {
			// Cancel won the race against the timer.
			e.mu.Unlock()
			return nil, ErrCancelled
		}
		h.txn.RetryCount = attempt + 1
		h.txn.UpdatedAtMs = e.clock().UnixMilli()
		e.mu.Unlock()
	}
}

// Cancel cancels a transaction, succeeding only while its status is
// pending (before the first attempt, or parked between attempts; the
// latter also clears the scheduled wait). Returns false for
// processing, any terminal status, or unknown ids.
func (e *Executor) Cancel(id string) bool {
	e.mu.Lock()
	h, ok := e.registry[id]
	if !ok || h.txn.Status != StatusPending {
		e.mu.Unlock()
		return false
	}
	h.txn.Status = StatusCancelled
	h.txn.UpdatedAtMs = e.clock().UnixMilli()
	close(h.cancelCh)
	e.mu.Unlock()

	e.logger.Debug("transaction cancelled", "transaction_id", id)
	return true
}

// Get returns a copy of the transaction with the given id.
func (e *Executor) Get(id string) (*Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.registry[id]
	if !ok {
		return nil, false
	}
	out := *h.txn
	return &out, true
}

// ByCorrelationID returns copies of every registered transaction
// linked to the given correlation id.
func (e *Executor) ByCorrelationID(correlationID string) []*Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Transaction
	for _, h := range e.registry {
		if h.txn.CorrelationID == correlationID {
			cp := *h.txn
			out = append(out, &cp)
		}
	}
	return out
}

// Cleanup drops terminal transactions older than TerminalRetention.
// Returns the number removed.
func (e *Executor) Cleanup(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := e.clock().Add(-TerminalRetention).UnixMilli()

	e.mu.Lock()
	removed := 0
	for id, h := range e.registry {
		if h.txn.Status.Terminal() && h.txn.UpdatedAtMs < cutoff {
			delete(e.registry, id)
			removed++
		}
	}
	if removed > 0 {
		// Drop the removed ids from the eviction order too, or the
		// slice grows one id per transaction ever executed.
		kept := e.order[:0]
		for _, id := range e.order {
			if _, ok := e.registry[id]; ok {
				kept = append(kept, id)
			}
		}
		e.order = kept
	}
	e.mu.Unlock()

	if removed > 0 {
		e.logger.Debug("terminal transactions dropped", "count", removed)
	}
	return removed, nil
}

// Stats returns a snapshot of the registry and the number of retry
// waits currently in progress.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	stats := Stats{Size: len(e.registry)}
	for _, h := range e.registry {
		switch h.txn.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	e.mu.Unlock()
	stats.RetryWaits = e.retryWaits.Load()
	return stats
}

func (e *Executor) register(txn *Transaction) *held {
	h := &held{txn: txn, cancelCh: make(chan struct{})}
	e.mu.Lock()
	for len(e.registry) >= e.capacity && len(e.order) > 0 {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.registry, oldest)
	}
	e.registry[txn.ID] = h
	e.order = append(e.order, txn.ID)
	e.mu.Unlock()
	return h
}

// transition applies a legal state-machine edge and refreshes the
// update timestamp. Illegal edges (including any move out of a
// terminal status) return false and leave the record untouched.
func (e *Executor) transition(h *held, to Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := h.txn.Status
	if cur.Terminal() {
		return false
	}
	switch to {
	case StatusProcessing, StatusCancelled:
		if cur != StatusPending {
			return false
		}
	case StatusPending, StatusCompleted, StatusFailed:
		if cur != StatusProcessing {
			return false
		}
	default:
		return false
	}
	h.txn.Status = to
	h.txn.UpdatedAtMs = e.clock().UnixMilli()
	return true
}

// cancelParked marks a parked transaction cancelled when the backoff
// wait ends because the caller's context did.
func (e *Executor) cancelParked(h *held) {
	e.mu.Lock()
	if h.txn.Status == StatusPending {
		h.txn.Status = StatusCancelled
		h.txn.UpdatedAtMs = e.clock().UnixMilli()
		close(h.cancelCh)
	}
	e.mu.Unlock()
}
