// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get returned %q, want %q", got, "v1")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get returned %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	s.clock = func() time.Time { return now }

	if err := s.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	now = now.Add(time.Minute + time.Second)
	if _, err := s.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after expiry returned %v, want ErrKeyNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("expired entry not evicted, Len = %d", s.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete returned %v, want ErrKeyNotFound", err)
	}
	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Errorf("Delete of absent key returned %v", err)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	src := []byte("original")
	if err := s.Set(ctx, "k1", src, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	src[0] = 'X'

	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored value mutated by caller, got %q", got)
	}
	got[0] = 'Y'

	again, _ := s.Get(ctx, "k1")
	if string(again) != "original" {
		t.Errorf("returned value aliased store contents, got %q", again)
	}
}

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "correlation key",
			got:  CorrelationKey("plc", "plc_0123456789abcdef0123456789abcdef"),
			want: "plc_correlation_plc_0123456789abcdef0123456789abcdef",
		},
		{
			name: "idempotency key",
			got:  IdempotencyKey("plc", "idem_favorite_toggle_AAAAAAAAAAAAAAAAAAAAAA"),
			want: "plc_idempotency_idem_favorite_toggle_AAAAAAAAAAAAAAAAAAAAAA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
