// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package upstream is the typed client for the pet-community backend
// API. Every mutation runs through the outbound pipeline (idempotency
// cache + transaction executor); queries bypass both but still get
// correlation headers via the shared transport.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/outbound"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

// bodyExcerptLen caps the response-body excerpt carried on a
// StatusError.
const bodyExcerptLen = 512

// DefaultTimeout is the per-request deadline when the caller supplies
// no http.Client.
const DefaultTimeout = 30 * time.Second

// FavoriteParams toggles a pet on a user's favorites list.
type FavoriteParams struct {
	PetID  string `json:"petId"`
	UserID string `json:"userId"`

	// Key overrides key derivation for this call.
	Key string `json:"-"`
}

// ApplicationParams submits an adoption application.
type ApplicationParams struct {
	PetID     string `json:"petId"`
	UserID    string `json:"userId"`
	Message   string `json:"message,omitempty"`
	HomeCheck bool   `json:"homeCheck"`

	Key string `json:"-"`
}

// BookingParams books a shelter visit slot.
type BookingParams struct {
	PetID  string `json:"petId,omitempty"`
	UserID string `json:"userId"`
	Slot   string `json:"slot"`

	Key string `json:"-"`
}

// RSVPParams answers a community event invitation.
type RSVPParams struct {
	EventID   string `json:"eventId"`
	UserID    string `json:"userId"`
	Attending bool   `json:"attending"`

	Key string `json:"-"`
}

// InteractionParams posts a social interaction (comment, reaction).
type InteractionParams struct {
	TargetID string `json:"targetId"`
	UserID   string `json:"userId"`
	Kind     string `json:"kind"`
	Body     string `json:"body,omitempty"`

	Key string `json:"-"`
}

// PetFilter narrows ListPets results.
type PetFilter struct {
	Species string
	Status  string
}

// Config configures a Client.
type Config struct {
	// BaseURL is the upstream API root, e.g.
	// https://api.petlovecommunity.org.
	BaseURL string

	// HTTPClient should carry an outbound.Transport so requests get
	// correlation headers, rate limiting, and circuit breaking. A
	// default client with DefaultTimeout is used when nil.
	HTTPClient *http.Client

	// Pipeline routes mutations through idempotency + transactions.
	Pipeline *outbound.Pipeline

	// Credential authenticates requests. Nil means no auth.
	Credential *Credential

	// Logger for client events.
	Logger *logging.Logger
}

// Client is the typed upstream API client.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	pipeline   *outbound.Pipeline
	credential *Credential
	logger     *logging.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL must not be empty")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline must not be nil")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Credential == nil {
		cfg.Credential = &Credential{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	return &Client{
		base:       base,
		httpClient: cfg.HTTPClient,
		pipeline:   cfg.Pipeline,
		credential: cfg.Credential,
		logger:     cfg.Logger,
	}, nil
}

// ====== Mutations ======

// ToggleFavorite flips a pet's presence on a user's favorites list.
func (c *Client) ToggleFavorite(ctx context.Context, p FavoriteParams) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:     "favorite_toggle",
		Type:     transaction.TypeFavoriteToggle,
		Mutation: true,
		Params:   p,
		Key:      p.Key,
		Invoke:   c.post("/favorites/toggle", p),
	})
}

// SubmitApplication submits an adoption application.
func (c *Client) SubmitApplication(ctx context.Context, p ApplicationParams) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:     "application_submission",
		Type:     transaction.TypeApplicationSubmission,
		Mutation: true,
		Params:   p,
		Key:      p.Key,
		Invoke:   c.post("/applications", p),
	})
}

// CreateBooking books a shelter visit.
func (c *Client) CreateBooking(ctx context.Context, p BookingParams) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:     "booking",
		Type:     transaction.TypeBooking,
		Mutation: true,
		Params:   p,
		Key:      p.Key,
		Invoke:   c.post("/bookings", p),
	})
}

// RSVP answers an event invitation.
func (c *Client) RSVP(ctx context.Context, p RSVPParams) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:     "rsvp",
		Type:     transaction.TypeRSVP,
		Mutation: true,
		Params:   p,
		Key:      p.Key,
		Invoke:   c.post("/events/rsvp", p),
	})
}

// PostInteraction posts a social interaction.
func (c *Client) PostInteraction(ctx context.Context, p InteractionParams) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:     "social_interaction",
		Type:     transaction.TypeSocialInteraction,
		Mutation: true,
		Params:   p,
		Key:      p.Key,
		Invoke:   c.post("/social/interactions", p),
	})
}

// ====== Queries ======

// ListPets fetches adoptable pets matching the filter.
func (c *Client) ListPets(ctx context.Context, filter PetFilter) (json.RawMessage, error) {
	q := url.Values{}
	if filter.Species != "" {
		q.Set("species", filter.Species)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	path := "/pets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:   "list_pets",
		Type:   transaction.TypeAPIQuery,
		Invoke: c.get(path),
	})
}

// GetPet fetches one pet by id.
func (c *Client) GetPet(ctx context.Context, petID string) (json.RawMessage, error) {
	return c.pipeline.Do(ctx, outbound.OperationSpec{
		Name:   "get_pet",
		Type:   transaction.TypeAPIQuery,
		Invoke: c.get("/pets/" + url.PathEscape(petID)),
	})
}

// ====== Request plumbing ======

func (c *Client) post(path string, body any) func(ctx context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	}
}

func (c *Client) get(path string) func(ctx context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		return c.do(ctx, http.MethodGet, path, nil)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	target := c.base.JoinPath(strings.SplitN(path, "?", 2)[0])
	if i := strings.IndexByte(path, '?'); i >= 0 {
		target.RawQuery = path[i+1:]
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.credential.Authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(raw)
		if len(excerpt) > bodyExcerptLen {
			excerpt = excerpt[:bodyExcerptLen]
		}
		return nil, &outbound.StatusError{
			Method:     method,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Body:       excerpt,
		}
	}
	if len(raw) == 0 {
		raw = []byte("null")
	}
	return json.RawMessage(raw), nil
}
