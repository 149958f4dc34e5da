// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package outbound

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// hashLen is the truncated base64url length of the parameter digest:
// 128 bits, plenty against accidental collision while keeping keys
// human-inspectable.
const hashLen = 22

var operationPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)

// DeriveKey builds a stable idempotency key from an operation name and
// its parameters: idem_<operation>_<22-char base64url SHA-256>.
//
// Description:
//
//	Parameters are canonicalized by marshaling to JSON, unmarshaling
//	into generic values, and marshaling again; Go's encoder emits map
//	keys sorted, so struct field order and map iteration order never
//	affect the key. Identical (operation, params) always produce the
//	same key, at any time — true idempotency for retried user actions
//	submitted moments apart.
//
// Inputs:
//
//	operation - Logical operation name (lowercase, [a-z0-9_.]).
//	params - Any JSON-serializable parameter value; nil is legal.
//
// Outputs:
//
//	string - The derived key.
//	error - Non-nil for an invalid operation name or unserializable
//	    params.
func DeriveKey(operation string, params any) (string, error) {
	if !operationPattern.MatchString(operation) {
		return "", fmt.Errorf("invalid operation name %q", operation)
	}
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("canonicalize params for %s: %w", operation, err)
	}
	sum := sha256.Sum256(canonical)
	digest := base64.RawURLEncoding.EncodeToString(sum[:])[:hashLen]
	return "idem_" + operation + "_" + digest, nil
}

// canonicalJSON serializes params with all object keys sorted at every
// nesting level.
func canonicalJSON(params any) ([]byte, error) {
	if params == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	// Round-trip through generic values: encoding/json sorts map keys
	// on output, which normalizes struct field order too.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.New("params did not round-trip through JSON")
	}
	return json.Marshal(generic)
}
