// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import "time"

// Metadata carries arbitrary key-value claims between the extension
// seams: an AuthProvider attaches claims to the AuthInfo it returns,
// and the gateway folds them into the AuditEvents it emits.
//
// Typical keys: "auth_mode", "shelter_id", "mfa_verified",
// "correlation_id", "session_id".
//
// Not safe for concurrent mutation; clone before sharing across
// goroutines.
//
//	meta := extensions.NewMetadata().
//	    Set("shelter_id", shelterID).
//	    Set("mfa_verified", true)
type Metadata map[string]any

// NewMetadata returns an empty, initialized Metadata.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set stores a value and returns the receiver for chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get returns the raw value and whether the key exists.
func (m Metadata) Get(key string) (any, bool) {
	value, ok := m[key]
	return value, ok
}

// GetString returns the value when it exists and is a string.
func (m Metadata) GetString(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// GetInt returns the value when it exists and is an int. No numeric
// coercion is applied; an int64 does not satisfy GetInt.
func (m Metadata) GetInt(key string) (int, bool) {
	i, ok := m[key].(int)
	return i, ok
}

// GetInt64 returns the value when it exists and is an int64.
func (m Metadata) GetInt64(key string) (int64, bool) {
	i, ok := m[key].(int64)
	return i, ok
}

// GetFloat64 returns the value when it exists and is a float64.
func (m Metadata) GetFloat64(key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

// GetBool returns the value when it exists and is a bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// GetTime returns the value when it exists and is a time.Time.
func (m Metadata) GetTime(key string) (time.Time, bool) {
	t, ok := m[key].(time.Time)
	return t, ok
}

// Has reports whether the key exists, regardless of value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Delete removes a key and returns the receiver for chaining.
func (m Metadata) Delete(key string) Metadata {
	delete(m, key)
	return m
}

// Clone returns a shallow, independent copy. Pointer values are
// shared between the copies.
func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Merge copies other's entries into the receiver, overwriting
// existing keys. A nil other is a no-op. Returns the receiver.
func (m Metadata) Merge(other Metadata) Metadata {
	for k, v := range other {
		m[k] = v
	}
	return m
}

// Keys returns the keys in unspecified order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries.
func (m Metadata) Len() int {
	return len(m)
}
