// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for identifiers used in
// storage keys, request headers, and log attributes.
//
// Identifiers arrive from HTTP paths and headers and end up inside
// durable-store keys and structured log records. Validating them here
// prevents key-namespace pollution and header injection.
package validation

import (
	"fmt"
	"regexp"
)

// Identifier shapes. Correlation, session, and transaction ids carry a
// fixed prefix and 32 hex chars; idempotency keys carry an operation
// name and a 22-char base64url digest.
var (
	correlationPattern = regexp.MustCompile(`^plc_[0-9a-f]{32}$`)
	sessionPattern     = regexp.MustCompile(`^sess_[0-9a-f]{32}$`)
	transactionPattern = regexp.MustCompile(`^txn_[0-9a-f]{32}$`)
	idemKeyPattern     = regexp.MustCompile(`^idem_[a-z][a-z0-9_.]*_[A-Za-z0-9_-]{22}$`)
	namespacePattern   = regexp.MustCompile(`^[a-z][a-z0-9]{0,15}$`)
)

// ValidateCorrelationID validates a correlation identifier (plc_<32 hex>).
//
// Returns an error if the id is empty or malformed.
func ValidateCorrelationID(id string) error {
	if id == "" {
		return fmt.Errorf("correlation id cannot be empty")
	}
	if !correlationPattern.MatchString(id) {
		return fmt.Errorf("invalid correlation id format: %q (must be plc_ followed by 32 hex chars)", id)
	}
	return nil
}

// ValidateSessionID validates a session identifier (sess_<32 hex>).
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sessionPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be sess_ followed by 32 hex chars)", id)
	}
	return nil
}

// ValidateTransactionID validates a transaction identifier (txn_<32 hex>).
func ValidateTransactionID(id string) error {
	if id == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}
	if !transactionPattern.MatchString(id) {
		return fmt.Errorf("invalid transaction id format: %q (must be txn_ followed by 32 hex chars)", id)
	}
	return nil
}

// ValidateIdempotencyKey validates a derived idempotency key
// (idem_<operation>_<22-char base64url digest>).
//
// Explicit caller-supplied keys must match the same shape so that
// durable-store keys stay well-formed.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return fmt.Errorf("idempotency key cannot be empty")
	}
	if !idemKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid idempotency key format: %q", key)
	}
	return nil
}

// ValidateNamespace validates a durable-store namespace.
//
// Namespaces prefix every persisted key, so they are restricted to
// 1-16 lowercase alphanumerics starting with a letter.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if !namespacePattern.MatchString(ns) {
		return fmt.Errorf("invalid namespace: %q (must be 1-16 lowercase alphanumerics starting with a letter)", ns)
	}
	return nil
}
