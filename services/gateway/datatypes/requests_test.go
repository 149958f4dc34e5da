// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMeta_EnsureDefaults(t *testing.T) {
	var m Meta
	m.EnsureDefaults()

	if _, err := uuid.Parse(m.RequestID); err != nil {
		t.Errorf("RequestID %q is not a UUID: %v", m.RequestID, err)
	}
	if m.Timestamp <= 0 {
		t.Errorf("Timestamp = %d, want > 0", m.Timestamp)
	}

	// Explicit values survive.
	m2 := Meta{RequestID: "550e8400-e29b-41d4-a716-446655440000", Timestamp: 1234}
	m2.EnsureDefaults()
	if m2.RequestID != "550e8400-e29b-41d4-a716-446655440000" || m2.Timestamp != 1234 {
		t.Error("EnsureDefaults overwrote explicit values")
	}
}

func TestFavoriteRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     FavoriteRequest
		wantErr bool
	}{
		{"valid", FavoriteRequest{PetID: "pet-1", UserID: "user-1"}, false},
		{"missing pet", FavoriteRequest{UserID: "user-1"}, true},
		{"missing user", FavoriteRequest{PetID: "pet-1"}, true},
		{"explicit key", FavoriteRequest{
			PetID: "pet-1", UserID: "user-1",
			IdempotencyKey: "idem_favorite_toggle_AAAAAAAAAAAAAAAAAAAAAA",
		}, false},
		{"malformed key", FavoriteRequest{
			PetID: "pet-1", UserID: "user-1",
			IdempotencyKey: "my-custom-key",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplicationRequest_MessageBound(t *testing.T) {
	req := ApplicationRequest{
		PetID:   "pet-1",
		UserID:  "user-1",
		Message: strings.Repeat("a", MaxMessageBytes),
	}
	if err := req.Validate(); err != nil {
		t.Errorf("message at bound should pass: %v", err)
	}

	req.Message = strings.Repeat("a", MaxMessageBytes+1)
	if err := req.Validate(); err == nil {
		t.Error("message over bound should fail")
	}
}

func TestBookingRequest_SlotFormat(t *testing.T) {
	req := BookingRequest{PetID: "pet-1", UserID: "user-1", Slot: "2026-09-01T14:00:00Z"}
	if err := req.Validate(); err != nil {
		t.Errorf("RFC 3339 slot should pass: %v", err)
	}

	req.Slot = "tomorrow at 2"
	if err := req.Validate(); err == nil {
		t.Error("non-RFC-3339 slot should fail")
	}
}

func TestInteractionRequest_Validate(t *testing.T) {
	req := InteractionRequest{TargetID: "pet-1", UserID: "user-1", Kind: "like"}
	if err := req.Validate(); err != nil {
		t.Errorf("like without body should pass: %v", err)
	}

	req.Kind = "comment"
	if err := req.Validate(); err == nil {
		t.Error("comment without body should fail")
	}

	req.Body = "what a good dog"
	if err := req.Validate(); err != nil {
		t.Errorf("comment with body should pass: %v", err)
	}

	req.Kind = "boop"
	if err := req.Validate(); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestCreateContextRequest_Validate(t *testing.T) {
	req := CreateContextRequest{}
	if err := req.Validate(); err != nil {
		t.Errorf("empty create is valid: %v", err)
	}

	req.ParentCorrelationID = "plc_0123456789abcdef0123456789abcdef"
	if err := req.Validate(); err != nil {
		t.Errorf("well-formed parent id should pass: %v", err)
	}

	req.ParentCorrelationID = "not-an-id"
	if err := req.Validate(); err == nil {
		t.Error("malformed parent id should fail")
	}
}

func TestUpdateContextRequest_Validate(t *testing.T) {
	var req UpdateContextRequest
	if err := req.Validate(); err == nil {
		t.Error("empty update should fail")
	}

	user := "user-9"
	req.UserID = &user
	if err := req.Validate(); err != nil {
		t.Errorf("user-only update should pass: %v", err)
	}

	bad := "nope"
	req.ParentCorrelationID = &bad
	if err := req.Validate(); err == nil {
		t.Error("malformed parent id should fail")
	}
}
