// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gateway HTTP API. Handlers stay
// thin: request bodies validate themselves (datatypes), the outbound
// pipeline owns idempotency and retries, and this package only binds,
// delegates, and maps errors to status codes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robsotonet/petlovecommunity-core/pkg/extensions"
	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/datatypes"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/lifecycle"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/middleware"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/upstream"
)

// Handler carries the wired reliability components for all routes.
type Handler struct {
	upstream *upstream.Client
	contexts *correlation.Store
	cache    *idempotency.Cache
	executor *transaction.Executor
	manager  *lifecycle.Manager
	logger   *logging.Logger
	audit    extensions.AuditLogger
}

// Config wires a Handler. All components are required except Logger
// and Audit.
type Config struct {
	Upstream *upstream.Client
	Contexts *correlation.Store
	Cache    *idempotency.Cache
	Executor *transaction.Executor
	Manager  *lifecycle.Manager
	Logger   *logging.Logger

	// Audit receives events for admin mutations. Default discards.
	Audit extensions.AuditLogger
}

// New validates the wiring and returns a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Upstream == nil {
		return nil, fmt.Errorf("handlers: nil upstream client")
	}
	if cfg.Contexts == nil {
		return nil, fmt.Errorf("handlers: nil correlation store")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("handlers: nil idempotency cache")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("handlers: nil transaction executor")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("handlers: nil lifecycle manager")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	if cfg.Audit == nil {
		cfg.Audit = &extensions.NopAuditLogger{}
	}
	return &Handler{
		upstream: cfg.Upstream,
		contexts: cfg.Contexts,
		cache:    cfg.Cache,
		executor: cfg.Executor,
		manager:  cfg.Manager,
		logger:   cfg.Logger,
		audit:    cfg.Audit,
	}, nil
}

// auditEvent records an admin mutation. Audit failures are logged and
// swallowed so a slow sink cannot fail the request.
func (h *Handler) auditEvent(c *gin.Context, eventType, action, resourceType, resourceID, outcome string) {
	userID := "anonymous"
	meta := extensions.NewMetadata()
	if info := middleware.GetAuthInfo(c); info != nil {
		userID = info.UserID
		// Provider claims travel with the event; request context
		// wins on key collisions.
		meta.Merge(info.Metadata)
	}
	meta.Set("correlation_id", middleware.GetCorrelationID(c))
	err := h.audit.Log(c.Request.Context(), extensions.AuditEvent{
		EventType:    eventType,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Outcome:      outcome,
		Metadata:     meta,
	})
	if err != nil {
		h.logger.Warn("audit sink failed",
			"event_type", eventType,
			"error", err.Error())
	}
}

// respondError maps the reliability core's error taxonomy onto HTTP.
// NotFound sentinels map to 404, upstream status errors to 502,
// deadline to 504, breaker-open to 503, everything else to 500. The
// correlation id rides along so clients can quote it.
func (h *Handler) respondError(c *gin.Context, err error) {
	corrID := middleware.GetCorrelationID(c)
	body := datatypes.ErrorResponse{Error: err.Error(), CorrelationID: corrID}

	var statusErr *outbound.StatusError
	switch {
	case errors.Is(err, correlation.ErrContextNotFound),
		errors.Is(err, idempotency.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, body)
	case errors.Is(err, outbound.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		h.logger.Error("request failed",
			"correlation_id", corrID,
			"error", err.Error())
		c.JSON(http.StatusInternalServerError, body)
	}
}

// badRequest responds 400 with the validation error.
func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
		Error:         err.Error(),
		CorrelationID: middleware.GetCorrelationID(c),
	})
}
