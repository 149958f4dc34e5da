// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"
)

const hex32 = "0123456789abcdef0123456789abcdef"

func TestValidateCorrelationID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "plc_" + hex32, false},

		{"empty", "", true},
		{"wrong prefix", "sess_" + hex32, true},
		{"uppercase hex", "plc_" + strings.ToUpper(hex32), true},
		{"too short", "plc_" + hex32[:31], true},
		{"too long", "plc_" + hex32 + "0", true},
		{"missing underscore", "plc" + hex32, true},
		{"injection attempt", "plc_" + hex32[:20] + "\r\nX-Evil: 1", true},
		{"path traversal", "plc_../../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCorrelationID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCorrelationID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("sess_" + hex32); err != nil {
		t.Errorf("valid session id rejected: %v", err)
	}
	for _, bad := range []string{"", "plc_" + hex32, "sess_short", "sess_" + hex32 + "ff"} {
		if err := ValidateSessionID(bad); err == nil {
			t.Errorf("ValidateSessionID(%q) = nil, want error", bad)
		}
	}
}

func TestValidateTransactionID(t *testing.T) {
	if err := ValidateTransactionID("txn_" + hex32); err != nil {
		t.Errorf("valid transaction id rejected: %v", err)
	}
	for _, bad := range []string{"", "txn_", "txn" + hex32, "TXN_" + hex32} {
		if err := ValidateTransactionID(bad); err == nil {
			t.Errorf("ValidateTransactionID(%q) = nil, want error", bad)
		}
	}
}

func TestValidateIdempotencyKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "idem_favorites.toggle_AbCdEfGhIjKlMnOpQrStUv", false},
		{"valid with underscore op", "idem_application_submit_0123456789_-abcdefghij", false},

		{"empty", "", true},
		{"no digest", "idem_favorites.toggle", true},
		{"digest too short", "idem_op_AbCdEf", true},
		{"uppercase op", "idem_Favorites_AbCdEfGhIjKlMnOpQrStUv", true},
		{"missing idem prefix", "favorites.toggle_AbCdEfGhIjKlMnOpQrStUv", true},
		{"spaces", "idem_fav toggle_AbCdEfGhIjKlMnOpQrStUv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdempotencyKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdempotencyKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		ns      string
		wantErr bool
	}{
		{"default", "plc", false},
		{"single char", "a", false},
		{"with digits", "plc2", false},
		{"max length", "abcdefghijklmnop", false},

		{"empty", "", true},
		{"uppercase", "PLC", true},
		{"leading digit", "2plc", true},
		{"too long", "abcdefghijklmnopq", true},
		{"underscore", "pet_love", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespace(tt.ns)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNamespace(%q) error = %v, wantErr %v", tt.ns, err, tt.wantErr)
			}
		})
	}
}
