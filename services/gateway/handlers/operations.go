// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/datatypes"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/middleware"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/upstream"
)

// ====== Mutations ======

// ToggleFavorite handles POST /v1/favorites/toggle.
func (h *Handler) ToggleFavorite(c *gin.Context) {
	var req datatypes.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.upstream.ToggleFavorite(c.Request.Context(), upstream.FavoriteParams{
		PetID:  req.PetID,
		UserID: req.UserID,
		Key:    req.IdempotencyKey,
	})
	h.respondOperation(c, req.IdempotencyKey, result, err)
}

// SubmitApplication handles POST /v1/applications.
func (h *Handler) SubmitApplication(c *gin.Context) {
	var req datatypes.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.upstream.SubmitApplication(c.Request.Context(), upstream.ApplicationParams{
		PetID:     req.PetID,
		UserID:    req.UserID,
		Message:   req.Message,
		HomeCheck: req.HomeCheck,
		Key:       req.IdempotencyKey,
	})
	h.respondOperation(c, req.IdempotencyKey, result, err)
}

// CreateBooking handles POST /v1/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req datatypes.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.upstream.CreateBooking(c.Request.Context(), upstream.BookingParams{
		PetID:  req.PetID,
		UserID: req.UserID,
		Slot:   req.Slot,
		Key:    req.IdempotencyKey,
	})
	h.respondOperation(c, req.IdempotencyKey, result, err)
}

// RSVP handles POST /v1/events/rsvp.
func (h *Handler) RSVP(c *gin.Context) {
	var req datatypes.RSVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.upstream.RSVP(c.Request.Context(), upstream.RSVPParams{
		EventID:   req.EventID,
		UserID:    req.UserID,
		Attending: req.Attending,
		Key:       req.IdempotencyKey,
	})
	h.respondOperation(c, req.IdempotencyKey, result, err)
}

// PostInteraction handles POST /v1/social/interactions.
func (h *Handler) PostInteraction(c *gin.Context) {
	var req datatypes.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.upstream.PostInteraction(c.Request.Context(), upstream.InteractionParams{
		TargetID: req.TargetID,
		UserID:   req.UserID,
		Kind:     req.Kind,
		Body:     req.Body,
		Key:      req.IdempotencyKey,
	})
	h.respondOperation(c, req.IdempotencyKey, result, err)
}

// ====== Queries ======

// ListPets handles GET /v1/pets.
func (h *Handler) ListPets(c *gin.Context) {
	filter := upstream.PetFilter{
		Species: c.Query("species"),
		Status:  c.Query("status"),
	}

	result, err := h.upstream.ListPets(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.OperationResponse{
		CorrelationID: middleware.GetCorrelationID(c),
		Result:        result,
	})
}

// GetPet handles GET /v1/pets/:id.
func (h *Handler) GetPet(c *gin.Context) {
	result, err := h.upstream.GetPet(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.OperationResponse{
		CorrelationID: middleware.GetCorrelationID(c),
		Result:        result,
	})
}

// respondOperation finishes a mutation: errors route through the
// taxonomy mapping, successes carry the reliability envelope.
func (h *Handler) respondOperation(c *gin.Context, key string, result json.RawMessage, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.OperationResponse{
		CorrelationID:  middleware.GetCorrelationID(c),
		IdempotencyKey: key,
		Result:         result,
	})
}
