// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package correlation maintains the registry of active correlation
// contexts: the identifiers that tie together every operation, log
// line, and outbound header caused by one logical user action.
//
// A context carries a correlation id, the session id shared with its
// children, an optional user id, and lineage metadata (parent id,
// depth, root id). Contexts live in an in-memory registry with optional
// read-through to a durable store, and are evicted after an inactivity
// window.
package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/secureid"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/storage"
)

// Canonical header names stamped on outbound requests and honored on
// inbound ones.
const (
	HeaderCorrelationID       = "X-Correlation-ID"
	HeaderSessionID           = "X-Session-ID"
	HeaderTimestamp           = "X-Timestamp"
	HeaderParentCorrelationID = "X-Parent-Correlation-ID"
	HeaderUserID              = "X-User-ID"
)

// DefaultInactivityWindow is how long a context may go unmodified
// before cleanup evicts it.
const DefaultInactivityWindow = time.Hour

// ErrContextNotFound is returned when a correlation id resolves
// neither in memory nor in durable storage. Callers treat it as a
// legitimate "not yet established" state.
var ErrContextNotFound = errors.New("correlation context not found")

// Context is one correlation context. Instances handed out by the
// Store are copies; mutating them does not affect the registry.
type Context struct {
	CorrelationID       string `json:"correlationId"`
	ParentCorrelationID string `json:"parentCorrelationId,omitempty"`
	SessionID           string `json:"sessionId"`
	UserID              string `json:"userId,omitempty"`
	TimestampMs         int64  `json:"timestampMs"`
	Depth               int    `json:"depth"`
	RootCorrelationID   string `json:"rootCorrelationId,omitempty"`
}

// persistedContext is the self-describing JSON document written to the
// durable store. ExpiresAtMs lets a reader discard stale entries
// without knowing the store's inactivity window.
type persistedContext struct {
	Context
	ExpiresAtMs int64 `json:"expiresAtMs"`
}

// ContextUpdate is a partial update applied by UpdateContext. Nil
// fields are left untouched.
type ContextUpdate struct {
	UserID              *string
	ParentCorrelationID *string
}

// Stats is a point-in-time snapshot of store activity.
type Stats struct {
	Active  int   `json:"active"`
	Created int64 `json:"created"`
	Evicted int64 `json:"evicted"`
}

// Config configures a Store. Zero values get sensible defaults; only
// the generator is required.
type Config struct {
	// Namespace prefixes durable-store keys. Default "plc".
	Namespace string

	// InactivityWindow is the eviction age for unmodified contexts.
	// Default 1 hour.
	InactivityWindow time.Duration

	// Store enables durable persistence with read-through. Optional.
	Store storage.DurableStore

	// Logger for store events. Optional.
	Logger *logging.Logger

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Store is the correlation context registry.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	gen     *secureid.Generator
	ns      string
	window  time.Duration
	durable storage.DurableStore
	logger  *logging.Logger
	clock   func() time.Time

	mu       sync.RWMutex
	contexts map[string]*Context

	created atomic.Int64
	evicted atomic.Int64
}

// NewStore creates a Store backed by the given id generator.
func NewStore(gen *secureid.Generator, cfg Config) (*Store, error) {
	if gen == nil {
		return nil, errors.New("generator must not be nil")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "plc"
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = DefaultInactivityWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Quiet: true})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Store{
		gen:      gen,
		ns:       cfg.Namespace,
		window:   cfg.InactivityWindow,
		durable:  cfg.Store,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		contexts: make(map[string]*Context),
	}, nil
}

// CreateContext allocates a new correlation context.
//
// Description:
//
//	Mints a fresh correlation id. If parentCorrelationID is non-empty
//	and resolves (memory, then durable read-through), the new context
//	inherits the parent's session id and lineage. An unresolvable
//	parent id is tolerated: the reference is kept but a fresh session
//	id is minted and the context becomes its own root.
//
// Inputs:
//
//	ctx - Context for durable-store I/O.
//	userID - Optional user identity; empty means anonymous.
//	parentCorrelationID - Optional parent reference; empty for a root.
//
// Outputs:
//
//	*Context - A copy of the registered context.
//	error - Non-nil on id-generation or persistence failure.
func (s *Store) CreateContext(ctx context.Context, userID, parentCorrelationID string) (*Context, error) {
	id, err := s.gen.NewCorrelationID()
	if err != nil {
		return nil, err
	}

	cc := &Context{
		CorrelationID:       id,
		ParentCorrelationID: parentCorrelationID,
		UserID:              userID,
		TimestampMs:         s.clock().UnixMilli(),
	}

	if parentCorrelationID != "" {
		if parent, err := s.GetContext(ctx, parentCorrelationID); err == nil {
			cc.SessionID = parent.SessionID
			cc.Depth = parent.Depth + 1
			cc.RootCorrelationID = parent.RootCorrelationID
			if cc.RootCorrelationID == "" {
				cc.RootCorrelationID = parent.CorrelationID
			}
		}
	}
	if cc.SessionID == "" {
		sid, err := s.gen.NewSessionID()
		if err != nil {
			return nil, err
		}
		cc.SessionID = sid
	}

	s.register(cc)
	if err := s.persist(ctx, cc); err != nil {
		s.logger.Warn("persist correlation context failed",
			"correlation_id", cc.CorrelationID, "error", err.Error())
	}
	s.created.Add(1)
	s.logger.Debug("correlation context created",
		"correlation_id", cc.CorrelationID,
		"session_id", cc.SessionID,
		"depth", cc.Depth)
	return copyContext(cc), nil
}

// CreateChildContext allocates a child of an existing context.
//
// Unlike CreateContext, the parent must resolve (memory or durable);
// otherwise ErrContextNotFound is returned. The child inherits the
// parent's session id, gets Depth = parent.Depth + 1, and points its
// root at the parent's root (or the parent itself when the parent is a
// root).
func (s *Store) CreateChildContext(ctx context.Context, parentCorrelationID, userID string) (*Context, error) {
	parent, err := s.GetContext(ctx, parentCorrelationID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent %s: %w", parentCorrelationID, err)
	}

	id, err := s.gen.NewCorrelationID()
	if err != nil {
		return nil, err
	}

	root := parent.RootCorrelationID
	if root == "" {
		root = parent.CorrelationID
	}
	cc := &Context{
		CorrelationID:       id,
		ParentCorrelationID: parent.CorrelationID,
		SessionID:           parent.SessionID,
		UserID:              userID,
		TimestampMs:         s.clock().UnixMilli(),
		Depth:               parent.Depth + 1,
		RootCorrelationID:   root,
	}

	s.register(cc)
	if err := s.persist(ctx, cc); err != nil {
		s.logger.Warn("persist correlation context failed",
			"correlation_id", cc.CorrelationID, "error", err.Error())
	}
	s.created.Add(1)
	s.logger.Debug("child correlation context created",
		"correlation_id", cc.CorrelationID,
		"parent_correlation_id", parent.CorrelationID,
		"depth", cc.Depth)
	return copyContext(cc), nil
}

// GetContext looks up a context by id.
//
// Resolution is local first, then the durable store; a durable hit
// re-populates the in-memory registry. Unknown ids return
// ErrContextNotFound.
func (s *Store) GetContext(ctx context.Context, id string) (*Context, error) {
	s.mu.RLock()
	cc, ok := s.contexts[id]
	s.mu.RUnlock()
	if ok {
		return copyContext(cc), nil
	}

	if s.durable == nil {
		return nil, ErrContextNotFound
	}
	raw, err := s.durable.Get(ctx, storage.CorrelationKey(s.ns, id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable read %s: %w", id, err)
	}

	var pc persistedContext
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("decode persisted context %s: %w", id, err)
	}
	if pc.ExpiresAtMs > 0 && pc.ExpiresAtMs <= s.clock().UnixMilli() {
		return nil, ErrContextNotFound
	}

	restored := pc.Context
	s.register(&restored)
	s.logger.Debug("correlation context restored from durable storage",
		"correlation_id", id)
	return copyContext(&restored), nil
}

// UpdateContext merges set fields into an existing context and
// refreshes its timestamp. Resolution follows GetContext (memory, then
// durable read-through). Returns false (no-op) for an unknown id.
func (s *Store) UpdateContext(ctx context.Context, id string, upd ContextUpdate) bool {
	s.mu.Lock()
	cc, ok := s.contexts[id]
	if !ok {
		s.mu.Unlock()
		// A context resident only in durable storage still resolves;
		// a hit re-registers it so the locked path below finds it.
		if _, err := s.GetContext(ctx, id); err != nil {
			return false
		}
		s.mu.Lock()
		if cc, ok = s.contexts[id]; !ok {
			s.mu.Unlock()
			return false
		}
	}
	if upd.UserID != nil {
		cc.UserID = *upd.UserID
	}
	if upd.ParentCorrelationID != nil {
		cc.ParentCorrelationID = *upd.ParentCorrelationID
	}
	cc.TimestampMs = s.clock().UnixMilli()
	snapshot := copyContext(cc)
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		s.logger.Warn("persist correlation context failed",
			"correlation_id", id, "error", err.Error())
	}
	return true
}

// RequestHeaders builds the canonical outbound header set for a known
// context. Unknown ids fail with ErrContextNotFound rather than
// producing empty headers.
func (s *Store) RequestHeaders(ctx context.Context, id string) (http.Header, error) {
	cc, err := s.GetContext(ctx, id)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(HeaderCorrelationID, cc.CorrelationID)
	h.Set(HeaderSessionID, cc.SessionID)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.clock().UnixMilli(), 10))
	if cc.ParentCorrelationID != "" {
		h.Set(HeaderParentCorrelationID, cc.ParentCorrelationID)
	}
	if cc.UserID != "" {
		h.Set(HeaderUserID, cc.UserID)
	}
	return h, nil
}

// InvalidateContext removes a context from memory and durable storage.
func (s *Store) InvalidateContext(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.contexts[id]
	delete(s.contexts, id)
	s.mu.Unlock()
	if ok {
		s.evicted.Add(1)
	}
	if s.durable != nil {
		if err := s.durable.Delete(ctx, storage.CorrelationKey(s.ns, id)); err != nil {
			return fmt.Errorf("durable delete %s: %w", id, err)
		}
	}
	return nil
}

// Cleanup evicts contexts whose last modification is older than the
// inactivity window, from memory and durable storage. Returns the
// eviction count.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	cutoff := s.clock().Add(-s.window).UnixMilli()

	s.mu.Lock()
	var stale []string
	for id, cc := range s.contexts {
		if cc.TimestampMs < cutoff {
			stale = append(stale, id)
			delete(s.contexts, id)
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range stale {
		s.evicted.Add(1)
		if s.durable == nil {
			continue
		}
		if err := s.durable.Delete(ctx, storage.CorrelationKey(s.ns, id)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("durable delete %s: %w", id, err)
		}
	}

	if len(stale) > 0 {
		s.logger.Debug("correlation contexts evicted", "count", len(stale))
	}
	return len(stale), firstErr
}

// Stats returns a snapshot of store activity.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	active := len(s.contexts)
	s.mu.RUnlock()
	return Stats{
		Active:  active,
		Created: s.created.Load(),
		Evicted: s.evicted.Load(),
	}
}

func (s *Store) register(cc *Context) {
	s.mu.Lock()
	s.contexts[cc.CorrelationID] = cc
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, cc *Context) error {
	if s.durable == nil {
		return nil
	}
	pc := persistedContext{
		Context:     *cc,
		ExpiresAtMs: s.clock().Add(s.window).UnixMilli(),
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	return s.durable.Set(ctx, storage.CorrelationKey(s.ns, cc.CorrelationID), raw, s.window)
}

func copyContext(cc *Context) *Context {
	out := *cc
	return &out
}
