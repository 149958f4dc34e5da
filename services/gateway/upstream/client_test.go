// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/idempotency"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	gen, err := secureid.New()
	require.NoError(t, err)
	store, err := correlation.NewStore(gen, correlation.Config{})
	require.NoError(t, err)
	executor, err := transaction.NewExecutor(gen, transaction.Config{
		Policies: transaction.NewPolicyTable(map[transaction.Type]transaction.Policy{
			transaction.TypeBooking: {MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		}),
		Classifier: outbound.IsRetryable,
	})
	require.NoError(t, err)
	pipeline, err := outbound.NewPipeline(outbound.PipelineConfig{
		Contexts: store,
		Cache:    idempotency.NewCache(idempotency.Config{}),
		Executor: executor,
	})
	require.NoError(t, err)

	client, err := NewClient(Config{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Transport: outbound.NewTransport(outbound.TransportConfig{Headers: store})},
		Pipeline:   pipeline,
		Credential: NewCredential(token, nil),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://api.example.com"})
	assert.Error(t, err, "pipeline is required")
}

func TestToggleFavorite_CachedRepeat(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/favorites/toggle", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"favorited":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	ctx := context.Background()
	p := FavoriteParams{PetID: "p42", UserID: "u1"}

	first, err := client.ToggleFavorite(ctx, p)
	require.NoError(t, err)
	second, err := client.ToggleFavorite(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load(), "identical toggle collapses to one upstream call")
	assert.JSONEq(t, string(first), string(second))
}

func TestCreateBooking_RetriesOn503(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"bookingId":"b1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	result, err := client.CreateBooking(context.Background(), BookingParams{UserID: "u1", Slot: "mon-9"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookingId":"b1"}`, string(result))
	assert.Equal(t, int64(2), hits.Load())
}

func TestSubmitApplication_AuthAndHeaders(t *testing.T) {
	var auth, corr string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		corr = r.Header.Get(correlation.HeaderCorrelationID)
		w.Write([]byte(`{"applicationId":"a1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "svc-token-123")
	_, err := client.SubmitApplication(context.Background(), ApplicationParams{PetID: "p1", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer svc-token-123", auth)
	assert.NotEmpty(t, corr, "pipeline-created correlation id must reach the upstream")
}

func TestGetPet_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such pet", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	_, err := client.GetPet(context.Background(), "p404")

	var statusErr *outbound.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "no such pet")
}

func TestListPets_Filter(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	_, err := client.ListPets(context.Background(), PetFilter{Species: "dog", Status: "adoptable"})
	require.NoError(t, err)
	assert.Contains(t, query, "species=dog")
	assert.Contains(t, query, "status=adoptable")
}

func TestRSVP_DistinctKeysPerEvent(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	ctx := context.Background()

	_, err := client.RSVP(ctx, RSVPParams{EventID: "e1", UserID: "u1", Attending: true})
	require.NoError(t, err)
	_, err = client.RSVP(ctx, RSVPParams{EventID: "e2", UserID: "u1", Attending: true})
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load(), "different events are different idempotency keys")
}

func TestCredential(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := NewCredential("", nil)
		assert.True(t, c.Empty())
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, c.Authorize(req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("token", func(t *testing.T) {
		c := NewCredential("secret", nil)
		assert.False(t, c.Empty())
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, c.Authorize(req))
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))

		// Repeat authorization works; the enclave reseals after use.
		req2 := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, c.Authorize(req2))
		assert.Equal(t, "Bearer secret", req2.Header.Get("Authorization"))
	})
}
