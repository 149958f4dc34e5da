// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response bodies of the
// gateway HTTP API, with validation rules attached to the types
// themselves so handlers stay thin.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/robsotonet/petlovecommunity-core/pkg/validation"
)

// MaxMessageBytes bounds free-text fields. Byte length, not rune
// count, to keep payload memory bounded.
const MaxMessageBytes = 4096

// =============================================================================
// Shared Validator Instance
// =============================================================================

// gatewayValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom identifier validators.
var gatewayValidate *validator.Validate

func init() {
	gatewayValidate = validator.New()

	_ = gatewayValidate.RegisterValidation("plc_corrid", func(fl validator.FieldLevel) bool {
		return validation.ValidateCorrelationID(fl.Field().String()) == nil
	})
	_ = gatewayValidate.RegisterValidation("plc_txnid", func(fl validator.FieldLevel) bool {
		return validation.ValidateTransactionID(fl.Field().String()) == nil
	})
	_ = gatewayValidate.RegisterValidation("plc_idemkey", func(fl validator.FieldLevel) bool {
		return validation.ValidateIdempotencyKey(fl.Field().String()) == nil
	})
	_ = gatewayValidate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxMessageBytes
	})
}

// =============================================================================
// Request Envelope
// =============================================================================

// Meta carries the audit fields every mutation body embeds. RequestID
// and Timestamp are filled by EnsureDefaults when the client omits
// them; they identify the HTTP request, not the logical operation, and
// deliberately stay out of idempotency key derivation.
type Meta struct {
	// RequestID uniquely identifies this HTTP request (UUID v4).
	RequestID string `json:"requestId" validate:"omitempty,uuid4"`

	// Timestamp is the client-side creation time, Unix milliseconds UTC.
	Timestamp int64 `json:"timestamp" validate:"omitempty,gt=0"`
}

// EnsureDefaults populates RequestID and Timestamp when absent.
func (m *Meta) EnsureDefaults() {
	if m.RequestID == "" {
		m.RequestID = uuid.NewString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Mutation Request Types
// =============================================================================

// FavoriteRequest toggles a pet on the caller's favorites list.
type FavoriteRequest struct {
	Meta

	PetID  string `json:"petId" validate:"required,max=64"`
	UserID string `json:"userId" validate:"required,max=64"`

	// IdempotencyKey, when set, overrides parameter-based derivation.
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,plc_idemkey"`
}

// Validate checks field constraints.
func (r *FavoriteRequest) Validate() error {
	return wrapValidation("favorite request", gatewayValidate.Struct(r))
}

// ApplicationRequest submits an adoption application.
type ApplicationRequest struct {
	Meta

	PetID     string `json:"petId" validate:"required,max=64"`
	UserID    string `json:"userId" validate:"required,max=64"`
	Message   string `json:"message" validate:"required,maxbytes"`
	HomeCheck bool   `json:"homeCheck"`

	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,plc_idemkey"`
}

func (r *ApplicationRequest) Validate() error {
	return wrapValidation("application request", gatewayValidate.Struct(r))
}

// BookingRequest books a meet-and-greet slot with a pet.
type BookingRequest struct {
	Meta

	PetID  string `json:"petId" validate:"required,max=64"`
	UserID string `json:"userId" validate:"required,max=64"`

	// Slot is the requested time, RFC 3339.
	Slot string `json:"slot" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`

	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,plc_idemkey"`
}

func (r *BookingRequest) Validate() error {
	return wrapValidation("booking request", gatewayValidate.Struct(r))
}

// RSVPRequest marks attendance for a community event.
type RSVPRequest struct {
	Meta

	EventID   string `json:"eventId" validate:"required,max=64"`
	UserID    string `json:"userId" validate:"required,max=64"`
	Attending bool   `json:"attending"`

	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,plc_idemkey"`
}

func (r *RSVPRequest) Validate() error {
	return wrapValidation("rsvp request", gatewayValidate.Struct(r))
}

// InteractionRequest posts a social interaction (comment, like, share).
type InteractionRequest struct {
	Meta

	TargetID string `json:"targetId" validate:"required,max=64"`
	UserID   string `json:"userId" validate:"required,max=64"`
	Kind     string `json:"kind" validate:"required,oneof=comment like share"`
	Body     string `json:"body,omitempty" validate:"omitempty,maxbytes"`

	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,plc_idemkey"`
}

func (r *InteractionRequest) Validate() error {
	if err := wrapValidation("interaction request", gatewayValidate.Struct(r)); err != nil {
		return err
	}
	if r.Kind == "comment" && r.Body == "" {
		return fmt.Errorf("validate interaction request: comment requires a body")
	}
	return nil
}

// =============================================================================
// Context Request Types
// =============================================================================

// CreateContextRequest opens a correlation context explicitly.
type CreateContextRequest struct {
	UserID string `json:"userId,omitempty" validate:"omitempty,max=64"`

	// ParentCorrelationID links this context under an existing one.
	ParentCorrelationID string `json:"parentCorrelationId,omitempty" validate:"omitempty,plc_corrid"`
}

func (r *CreateContextRequest) Validate() error {
	return wrapValidation("create context request", gatewayValidate.Struct(r))
}

// UpdateContextRequest patches mutable context fields. Nil fields are
// left untouched.
type UpdateContextRequest struct {
	UserID              *string `json:"userId,omitempty"`
	ParentCorrelationID *string `json:"parentCorrelationId,omitempty"`
}

func (r *UpdateContextRequest) Validate() error {
	if r.UserID == nil && r.ParentCorrelationID == nil {
		return fmt.Errorf("validate update context request: no fields to update")
	}
	if r.ParentCorrelationID != nil && *r.ParentCorrelationID != "" {
		if err := validation.ValidateCorrelationID(*r.ParentCorrelationID); err != nil {
			return fmt.Errorf("validate update context request: %w", err)
		}
	}
	return nil
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// OperationResponse wraps an upstream result with the gateway's
// reliability envelope.
type OperationResponse struct {
	CorrelationID  string `json:"correlationId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	Result         any    `json:"result"`
}

func wrapValidation(what string, err error) error {
	if err != nil {
		return fmt.Errorf("validate %s: %w", what, err)
	}
	return nil
}
