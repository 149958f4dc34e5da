// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

const tracerName = "petlovecommunity-core/gateway/outbound"

// OperationSpec describes one upstream call for the pipeline.
type OperationSpec struct {
	// Name is the logical operation name, used for key derivation and
	// the span name.
	Name string

	// Type selects the transaction retry policy.
	Type transaction.Type

	// Mutation routes the call through the idempotency cache and the
	// transaction executor. Queries skip both.
	Mutation bool

	// Params participate in key derivation. Ignored when Key is set.
	Params any

	// Key is an explicit idempotency key; it wins over derivation.
	Key string

	// Expiration overrides the idempotency record lifetime. Zero
	// keeps the cache default.
	Expiration time.Duration

	// Invoke performs the actual upstream call.
	Invoke func(ctx context.Context) (json.RawMessage, error)
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Contexts *correlation.Store
	Cache    *idempotency.Cache
	Executor *transaction.Executor
	Logger   *logging.Logger

	// DisableIdempotency bypasses the cache for mutations.
	DisableIdempotency bool

	// DisableTransactions bypasses the executor (and with it, retry).
	DisableTransactions bool

	// DefaultExpiration applies to mutations whose OperationSpec carries
	// no Expiration. Zero keeps the cache default.
	DefaultExpiration time.Duration
}

// Pipeline composes the reliability layers around one upstream call:
// correlation resolution, idempotency-key derivation, the idempotency
// cache, and the transaction executor, in that order for mutations.
//
// Thread Safety: safe for concurrent use.
type Pipeline struct {
	contexts *correlation.Store
	cache    *idempotency.Cache
	executor *transaction.Executor
	logger   *logging.Logger
	tracer   trace.Tracer

	skipIdempotency  bool
	skipTransactions bool
	defaultExpiry    time.Duration
}

// NewPipeline creates a Pipeline. Contexts, Cache, and Executor are
// required unless the corresponding layer is disabled.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Contexts == nil {
		return nil, errors.New("correlation store must not be nil")
	}
	if cfg.Cache == nil && !cfg.DisableIdempotency {
		return nil, errors.New("idempotency cache must not be nil")
	}
	if cfg.Executor == nil && !cfg.DisableTransactions {
		return nil, errors.New("transaction executor must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	return &Pipeline{
		contexts:         cfg.Contexts,
		cache:            cfg.Cache,
		executor:         cfg.Executor,
		logger:           cfg.Logger,
		tracer:           otel.Tracer(tracerName),
		skipIdempotency:  cfg.DisableIdempotency,
		skipTransactions: cfg.DisableTransactions,
		defaultExpiry:    cfg.DefaultExpiration,
	}, nil
}

// Do runs one operation through the pipeline.
//
// Description:
//
//	Resolves the active correlation id (from ctx, creating a fresh
//	context when absent), derives or accepts the idempotency key, and
//	invokes the operation. Mutations run inside
//	idempotency.Execute(key, ...) wrapping transaction.Execute(...);
//	queries call Invoke directly. Every path carries the correlation
//	id on ctx so the Transport stamps headers, and runs under an
//	OpenTelemetry span named after the operation.
//
// Outputs:
//
//	json.RawMessage - The operation's (possibly cached) result.
//	error - The underlying operation error, propagated verbatim
//	    through the executor's retry loop.
func (p *Pipeline) Do(ctx context.Context, op OperationSpec) (json.RawMessage, error) {
	correlationID, ok := CorrelationIDFrom(ctx)
	if !ok {
		cc, err := p.contexts.CreateContext(ctx, "", "")
		if err != nil {
			return nil, err
		}
		correlationID = cc.CorrelationID
		ctx = WithCorrelationID(ctx, correlationID)
	}

	ctx, span := p.tracer.Start(ctx, "outbound."+op.Name,
		trace.WithAttributes(
			attribute.String("plc.operation", op.Name),
			attribute.String("plc.correlation_id", correlationID),
			attribute.Bool("plc.mutation", op.Mutation),
		))
	defer span.End()

	result, err := p.run(ctx, correlationID, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, correlationID string, op OperationSpec) (json.RawMessage, error) {
	if !op.Mutation {
		return op.Invoke(ctx)
	}

	key := op.Key
	if key == "" {
		derived, err := DeriveKey(op.Name, op.Params)
		if err != nil {
			return nil, err
		}
		key = derived
	}

	invoke := op.Invoke
	if !p.skipTransactions {
		typ := op.Type
		if typ == "" {
			typ = transaction.TypeAPIMutation
		}
		inner := invoke
		invoke = func(ctx context.Context) (json.RawMessage, error) {
			return p.executor.Execute(ctx, typ, correlationID, key, inner)
		}
	}

	if p.skipIdempotency {
		return invoke(ctx)
	}

	expiration := op.Expiration
	if expiration == 0 {
		expiration = p.defaultExpiry
	}
	var opts []idempotency.ExecuteOption
	if expiration > 0 {
		opts = append(opts, idempotency.WithExpiration(expiration))
	}
	return p.cache.Execute(ctx, key, correlationID, idempotency.Operation(invoke), opts...)
}
