// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package secureid generates collision-resistant identifiers for
// correlation, session, and transaction contexts.
//
// All identifiers are drawn from crypto/rand. There is deliberately no
// weaker fallback: idempotency-key uniqueness and correlation-id
// non-guessability depend on a secure source, so a missing source is a
// fatal configuration error, not a degradation.
package secureid

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// ErrNoSecureSource indicates that no cryptographically secure random
// source is available. Callers must treat this as fatal.
var ErrNoSecureSource = errors.New("no secure random source available")

// ErrInvalidPrefix indicates a malformed identifier prefix.
var ErrInvalidPrefix = errors.New("invalid identifier prefix")

// Identifier prefixes used throughout the gateway.
const (
	PrefixCorrelation = "plc"
	PrefixSession     = "sess"
	PrefixTransaction = "txn"
)

// idBytes is the number of random bytes per identifier (32 hex chars).
const idBytes = 16

// prefixPattern restricts prefixes to lowercase alphanumerics.
var prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9]{0,11}$`)

// Generator produces identifiers of the form <prefix>_<32 hex chars>.
//
// Thread Safety: Safe for concurrent use; the underlying source is
// crypto/rand.Reader.
type Generator struct {
	source io.Reader
}

// New creates a Generator after verifying the secure random source.
//
// Description:
//
//	Performs an entropy self-check by reading once from crypto/rand.
//	A failed read means the platform cannot supply secure randomness;
//	construction fails with ErrNoSecureSource and the caller should
//	abort startup.
//
// Outputs:
//
//	*Generator - Ready for use.
//	error - ErrNoSecureSource (wrapped) if the self-check fails.
func New() (*Generator, error) {
	g := &Generator{source: rand.Reader}
	var probe [idBytes]byte
	if _, err := io.ReadFull(g.source, probe[:]); err != nil {
		return nil, fmt.Errorf("entropy self-check: %w: %v", ErrNoSecureSource, err)
	}
	return g, nil
}

// Generate produces a new identifier with the given prefix.
//
// Inputs:
//
//	prefix - Lowercase alphanumeric prefix (e.g. "plc", "sess", "txn").
//
// Outputs:
//
//	string - Identifier formatted <prefix>_<32 hex chars>.
//	error - ErrInvalidPrefix for a malformed prefix, or
//	        ErrNoSecureSource (wrapped) if the read fails at call time.
func (g *Generator) Generate(prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	var buf [idBytes]byte
	if _, err := io.ReadFull(g.source, buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w: %v", ErrNoSecureSource, err)
	}

	return prefix + "_" + hex.EncodeToString(buf[:]), nil
}

// NewCorrelationID generates a correlation identifier (plc_<32 hex>).
func (g *Generator) NewCorrelationID() (string, error) {
	return g.Generate(PrefixCorrelation)
}

// NewSessionID generates a session identifier (sess_<32 hex>).
func (g *Generator) NewSessionID() (string, error) {
	return g.Generate(PrefixSession)
}

// NewTransactionID generates a transaction identifier (txn_<32 hex>).
func (g *Generator) NewTransactionID() (string, error) {
	return g.Generate(PrefixTransaction)
}
