// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Type categorizes the logical operation a transaction wraps. Each
// type carries its own retry policy.
type Type string

const (
	TypeFavoriteToggle        Type = "favorite_toggle"
	TypeApplicationSubmission Type = "application_submission"
	TypeBooking               Type = "booking"
	TypeRSVP                  Type = "rsvp"
	TypeSocialInteraction     Type = "social_interaction"
	TypeAPIMutation           Type = "api_mutation"
	TypeAPIQuery              Type = "api_query"
)

// Backoff constants for the exponential retry delay
// min(BaseDelay * 2^retryCount, MaxDelay).
const (
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = 32 * time.Second
)

// DefaultMaxRetries applies to types absent from the policy table.
const DefaultMaxRetries = 3

// Policy is the retry policy for one transaction type.
type Policy struct {
	MaxRetries int           `yaml:"maxRetries"`
	BaseDelay  time.Duration `yaml:"baseDelay"`
	MaxDelay   time.Duration `yaml:"maxDelay"`
}

// Backoff returns the delay before retry number retryCount+1:
// min(BaseDelay * 2^retryCount, MaxDelay).
func (p Policy) Backoff(retryCount int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// UnmarshalYAML decodes a policy entry, accepting Go duration strings
// ("2s", "500ms") for the delay fields.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxRetries int    `yaml:"maxRetries"`
		BaseDelay  string `yaml:"baseDelay"`
		MaxDelay   string `yaml:"maxDelay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	p.MaxRetries = raw.MaxRetries
	var err error
	if p.BaseDelay, err = parseDuration(raw.BaseDelay); err != nil {
		return fmt.Errorf("baseDelay: %w", err)
	}
	if p.MaxDelay, err = parseDuration(raw.MaxDelay); err != nil {
		return fmt.Errorf("maxDelay: %w", err)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// normalize fills zero fields with the compiled-in defaults.
func (p Policy) normalize() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// PolicyTable maps transaction types to retry policies. The table is
// replaceable as a whole, so a configuration hot-reload swaps policies
// atomically without disturbing in-flight transactions (which read
// their policy once, at start).
//
// Thread Safety: safe for concurrent use.
type PolicyTable struct {
	mu       sync.RWMutex
	policies map[Type]Policy
	fallback Policy
}

// DefaultPolicies returns the compiled-in per-type retry limits.
func DefaultPolicies() map[Type]Policy {
	return map[Type]Policy{
		TypeFavoriteToggle:        {MaxRetries: 3, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeApplicationSubmission: {MaxRetries: 5, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeBooking:               {MaxRetries: 5, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeRSVP:                  {MaxRetries: 3, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeSocialInteraction:     {MaxRetries: 2, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeAPIMutation:           {MaxRetries: 3, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
		TypeAPIQuery:              {MaxRetries: 3, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay},
	}
}

// NewPolicyTable builds a table from the given policies. Unrecognized
// types fall back to DefaultMaxRetries with the default delays.
func NewPolicyTable(policies map[Type]Policy) *PolicyTable {
	t := &PolicyTable{
		fallback: Policy{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
			MaxDelay:   DefaultMaxDelay,
		},
	}
	t.Replace(policies)
	return t
}

// DefaultPolicyTable returns a table with the compiled-in defaults.
func DefaultPolicyTable() *PolicyTable {
	return NewPolicyTable(DefaultPolicies())
}

// Lookup returns the policy for typ, or the fallback for unrecognized
// types.
func (t *PolicyTable) Lookup(typ Type) Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.policies[typ]; ok {
		return p
	}
	return t.fallback
}

// Replace swaps the whole table atomically. Zero policy fields are
// normalized to the compiled-in defaults.
func (t *PolicyTable) Replace(policies map[Type]Policy) {
	normalized := make(map[Type]Policy, len(policies))
	for typ, p := range policies {
		normalized[typ] = p.normalize()
	}
	t.mu.Lock()
	t.policies = normalized
	t.mu.Unlock()
}
