// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robsotonet/petlovecommunity-core/pkg/validation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/datatypes"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/lifecycle"
)

// ====== Correlation Contexts ======

// CreateContext handles POST /v1/contexts.
func (h *Handler) CreateContext(c *gin.Context) {
	var req datatypes.CreateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	cc, err := h.contexts.CreateContext(c.Request.Context(), req.UserID, req.ParentCorrelationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cc)
}

// CreateChildContext handles POST /v1/contexts/:id/children. Unlike
// CreateContext, the parent must resolve.
func (h *Handler) CreateChildContext(c *gin.Context) {
	parentID := c.Param("id")
	if err := validation.ValidateCorrelationID(parentID); err != nil {
		h.badRequest(c, err)
		return
	}

	var req datatypes.CreateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.badRequest(c, err)
		return
	}

	cc, err := h.contexts.CreateChildContext(c.Request.Context(), parentID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cc)
}

// GetContext handles GET /v1/contexts/:id.
func (h *Handler) GetContext(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateCorrelationID(id); err != nil {
		h.badRequest(c, err)
		return
	}

	cc, err := h.contexts.GetContext(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc)
}

// UpdateContext handles PATCH /v1/contexts/:id.
func (h *Handler) UpdateContext(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateCorrelationID(id); err != nil {
		h.badRequest(c, err)
		return
	}

	var req datatypes.UpdateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	ok := h.contexts.UpdateContext(c.Request.Context(), id, correlation.ContextUpdate{
		UserID:              req.UserID,
		ParentCorrelationID: req.ParentCorrelationID,
	})
	if !ok {
		h.respondError(c, correlation.ErrContextNotFound)
		return
	}

	cc, err := h.contexts.GetContext(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cc)
}

// ContextHeaders handles GET /v1/contexts/:id/headers. Returns the
// outbound header set a request under this context would carry.
func (h *Handler) ContextHeaders(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateCorrelationID(id); err != nil {
		h.badRequest(c, err)
		return
	}

	headers, err := h.contexts.RequestHeaders(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	flat := make(map[string]string, len(headers))
	for name := range headers {
		flat[name] = headers.Get(name)
	}
	c.JSON(http.StatusOK, gin.H{"headers": flat})
}

// ====== Transactions ======

// GetTransaction handles GET /v1/transactions/:id.
func (h *Handler) GetTransaction(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateTransactionID(id); err != nil {
		h.badRequest(c, err)
		return
	}

	txn, ok := h.executor.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
			Error: fmt.Sprintf("transaction %s not found", id),
		})
		return
	}
	c.JSON(http.StatusOK, txn)
}

// ListTransactions handles GET /v1/transactions?correlation_id=...
func (h *Handler) ListTransactions(c *gin.Context) {
	corrID := c.Query("correlation_id")
	if err := validation.ValidateCorrelationID(corrID); err != nil {
		h.badRequest(c, err)
		return
	}

	txns := h.executor.ByCorrelationID(corrID)
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

// CancelTransaction handles POST /v1/transactions/:id/cancel. Only
// pending transactions cancel; anything in flight or terminal is 409.
func (h *Handler) CancelTransaction(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateTransactionID(id); err != nil {
		h.badRequest(c, err)
		return
	}

	if h.executor.Cancel(id) {
		txn, _ := h.executor.Get(id)
		h.auditEvent(c, "transaction.cancel", "cancel", "transaction", id, "success")
		c.JSON(http.StatusOK, txn)
		return
	}

	if txn, ok := h.executor.Get(id); ok {
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{
			Error: fmt.Sprintf("transaction %s is %s, only pending transactions cancel", id, txn.Status),
		})
		return
	}
	c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
		Error: fmt.Sprintf("transaction %s not found", id),
	})
}

// ====== Idempotency ======

// IdempotencyStats handles GET /v1/idempotency/stats.
func (h *Handler) IdempotencyStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// InvalidateIdempotencyRecord handles DELETE /v1/idempotency/records/:key.
func (h *Handler) InvalidateIdempotencyRecord(c *gin.Context) {
	key := c.Param("key")
	if err := validation.ValidateIdempotencyKey(key); err != nil {
		h.badRequest(c, err)
		return
	}

	if _, err := h.cache.GetRecord(c.Request.Context(), key); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.cache.InvalidateRecord(c.Request.Context(), key); err != nil {
		h.respondError(c, err)
		return
	}
	h.auditEvent(c, "idempotency.invalidate", "invalidate", "idempotency_record", key, "success")
	c.Status(http.StatusNoContent)
}

// ====== System ======

// SystemStats handles GET /v1/system/stats.
func (h *Handler) SystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Metrics())
}

// SystemCleanup handles POST /v1/system/cleanup. Runs a synchronous
// sweep across every component.
func (h *Handler) SystemCleanup(c *gin.Context) {
	report, err := h.manager.ForceCleanup(c.Request.Context())
	if err != nil {
		h.auditEvent(c, "system.cleanup", "execute", "system", "", "failure")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	h.auditEvent(c, "system.cleanup", "execute", "system", "", "success")
	c.JSON(http.StatusOK, report)
}

// Health handles GET /health. Unhealthy reports as 503 so load
// balancers stop routing; degraded still serves.
func (h *Handler) Health(c *gin.Context) {
	report := h.manager.Health()
	status := http.StatusOK
	if report.Status == lifecycle.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
