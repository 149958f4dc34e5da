// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the gateway service.
//
// The correlation middleware is the entry point of the reliability
// core: every request gets a correlation context (adopted from inbound
// headers or freshly created), the context id is echoed on the
// response, and downstream outbound calls inherit it automatically.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/pkg/validation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
)

// =============================================================================
// Context Keys
// =============================================================================

// correlationIDKey is the gin context key for the resolved correlation id.
const correlationIDKey = "plc_correlation_id"

// =============================================================================
// Context Helpers
// =============================================================================

// SetCorrelationID stores the resolved correlation id in the gin context.
func SetCorrelationID(c *gin.Context, id string) {
	c.Set(correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation id resolved for this
// request, or "" when the middleware did not run.
func GetCorrelationID(c *gin.Context) string {
	if v, exists := c.Get(correlationIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Correlation Middleware
// =============================================================================

// Correlation creates a gin middleware that resolves a correlation
// context for every request.
//
// Description:
//
//	A well-formed inbound X-Correlation-ID naming a known context is
//	adopted. Anything else (absent, malformed, or unknown id) yields a
//	fresh context; an unknown-but-well-formed inbound id is preserved
//	as the new context's parent reference so cross-service lineage
//	survives registry eviction. The resolved id is stored in the gin
//	context, attached to the request context for outbound calls, and
//	echoed on the response.
//
// Thread Safety: the returned middleware is safe for concurrent use.
func Correlation(store *correlation.Store, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.New(logging.Config{Quiet: true})
	}

	return func(c *gin.Context) {
		inbound := c.GetHeader(correlation.HeaderCorrelationID)
		userID := c.GetHeader(correlation.HeaderUserID)

		id := resolve(c, store, inbound, userID, logger)
		if id == "" {
			// Context creation only fails when the entropy source is
			// gone; serving without correlation would hide that.
			c.AbortWithStatusJSON(500, gin.H{"error": "correlation unavailable"})
			return
		}

		SetCorrelationID(c, id)
		c.Header(correlation.HeaderCorrelationID, id)
		c.Request = c.Request.WithContext(
			outbound.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

func resolve(c *gin.Context, store *correlation.Store, inbound, userID string, logger *logging.Logger) string {
	ctx := c.Request.Context()

	if inbound != "" && validation.ValidateCorrelationID(inbound) == nil {
		if cc, err := store.GetContext(ctx, inbound); err == nil {
			if userID != "" && cc.UserID == "" {
				store.UpdateContext(ctx, cc.CorrelationID, correlation.ContextUpdate{UserID: &userID})
			}
			return cc.CorrelationID
		}
		// Unknown id: keep it as lineage on a fresh context.
		cc, err := store.CreateContext(ctx, userID, inbound)
		if err != nil {
			logger.Error("create correlation context failed", "error", err.Error())
			return ""
		}
		return cc.CorrelationID
	}

	if inbound != "" {
		logger.Warn("discarding malformed inbound correlation id",
			"header", correlation.HeaderCorrelationID)
	}
	cc, err := store.CreateContext(ctx, userID, "")
	if err != nil {
		logger.Error("create correlation context failed", "error", err.Error())
		return ""
	}
	return cc.CorrelationID
}
