// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsotonet/petlovecommunity-core/pkg/extensions"
	"github.com/robsotonet/petlovecommunity-core/pkg/validation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/observability"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCorrelationStore(t *testing.T) *correlation.Store {
	t.Helper()
	gen, err := secureid.New()
	require.NoError(t, err)
	store, err := correlation.NewStore(gen, correlation.Config{})
	require.NoError(t, err)
	return store
}

// captureRouter wires the correlation middleware ahead of a handler
// that records what the middleware resolved.
func captureRouter(store *correlation.Store) (*gin.Engine, *capturedRequest) {
	cap := &capturedRequest{}
	r := gin.New()
	r.Use(Correlation(store, nil))
	r.GET("/probe", func(c *gin.Context) {
		cap.ginID = GetCorrelationID(c)
		cap.ctxID, _ = outbound.CorrelationIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r, cap
}

type capturedRequest struct {
	ginID string
	ctxID string
}

// =============================================================================
// Correlation Middleware Tests
// =============================================================================

func TestCorrelation_CreatesContextWhenAbsent(t *testing.T) {
	store := newCorrelationStore(t)
	r, cap := captureRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/probe", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	echoed := w.Header().Get(correlation.HeaderCorrelationID)
	require.NoError(t, validation.ValidateCorrelationID(echoed))
	assert.Equal(t, echoed, cap.ginID)
	assert.Equal(t, echoed, cap.ctxID, "request context carries the id for outbound calls")

	_, err := store.GetContext(context.Background(), echoed)
	assert.NoError(t, err, "context is registered")
}

func TestCorrelation_AdoptsKnownInboundID(t *testing.T) {
	store := newCorrelationStore(t)
	existing, err := store.CreateContext(context.Background(), "user_7", "")
	require.NoError(t, err)

	r, cap := captureRouter(store)

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set(correlation.HeaderCorrelationID, existing.CorrelationID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, existing.CorrelationID, cap.ginID)
	assert.Equal(t, existing.CorrelationID, w.Header().Get(correlation.HeaderCorrelationID))
}

func TestCorrelation_UnknownInboundBecomesParent(t *testing.T) {
	store := newCorrelationStore(t)
	r, cap := captureRouter(store)

	foreign := "plc_00000000000000000000000000000abc"
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set(correlation.HeaderCorrelationID, foreign)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NotEmpty(t, cap.ginID)
	assert.NotEqual(t, foreign, cap.ginID, "unknown id is not adopted")

	cc, err := store.GetContext(context.Background(), cap.ginID)
	require.NoError(t, err)
	assert.Equal(t, foreign, cc.ParentCorrelationID, "foreign id survives as lineage")
}

func TestCorrelation_MalformedInboundDiscarded(t *testing.T) {
	store := newCorrelationStore(t)
	r, cap := captureRouter(store)

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set(correlation.HeaderCorrelationID, "totally-bogus")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NoError(t, validation.ValidateCorrelationID(cap.ginID))
	cc, err := store.GetContext(context.Background(), cap.ginID)
	require.NoError(t, err)
	assert.Empty(t, cc.ParentCorrelationID)
}

func TestCorrelation_AttachesUserID(t *testing.T) {
	store := newCorrelationStore(t)
	r, cap := captureRouter(store)

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set(correlation.HeaderUserID, "user_42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	cc, err := store.GetContext(context.Background(), cap.ginID)
	require.NoError(t, err)
	assert.Equal(t, "user_42", cc.UserID)
}

// =============================================================================
// Auth Middleware Tests
// =============================================================================

type mockAuthProvider struct {
	info *extensions.AuthInfo
	err  error
}

func (m *mockAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

func TestAuth_NopProviderPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Auth(&extensions.NopAuthProvider{}))

	var got *extensions.AuthInfo
	r.GET("/probe", func(c *gin.Context) {
		got = GetAuthInfo(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/probe", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, got)
}

func TestAuth_UnauthorizedRejected(t *testing.T) {
	r := gin.New()
	r.Use(Auth(&mockAuthProvider{err: extensions.ErrUnauthorized}))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/probe", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer abc123", "abc123"},
		{"case insensitive", "bearer abc123", "abc123"},
		{"missing", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(c))
		})
	}
}

// =============================================================================
// Metrics Middleware Tests
// =============================================================================

func TestMetrics_RecordsByRoutePattern(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/v1/pets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/pets/rex", nil))

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/pets/:id", "GET", "200"))
	assert.Equal(t, float64(1), got)

	// Unmatched routes collapse into one label.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))
	got = testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	assert.Equal(t, float64(1), got)
}
