// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/robsotonet/petlovecommunity-core/pkg/extensions"
	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/correlation"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/middleware"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/observability"
)

// RouterConfig wires the gin engine.
type RouterConfig struct {
	Handler *Handler

	// Contexts feeds the correlation middleware.
	Contexts *correlation.Store

	// AuthProvider guards /v1. Defaults to NopAuthProvider.
	AuthProvider extensions.AuthProvider

	// Metrics, when set, enables the request metrics middleware.
	Metrics *observability.Metrics

	// MetricsHandler serves GET /metrics. Nil disables the route.
	MetricsHandler http.Handler

	// ServiceName labels otelgin spans.
	ServiceName string

	Logger *logging.Logger
}

// NewRouter builds the gateway's gin engine: otelgin tracing and
// request metrics globally, correlation and auth on the API surface.
// /metrics stays outside the correlation middleware so scrapes do not
// churn the context registry.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.AuthProvider == nil {
		cfg.AuthProvider = &extensions.NopAuthProvider{}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "plc-gateway"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	r.GET("/health", cfg.Handler.Health)

	v1 := r.Group("/v1")
	v1.Use(middleware.Correlation(cfg.Contexts, cfg.Logger))
	v1.Use(middleware.Auth(cfg.AuthProvider))
	{
		v1.POST("/favorites/toggle", cfg.Handler.ToggleFavorite)
		v1.POST("/applications", cfg.Handler.SubmitApplication)
		v1.POST("/bookings", cfg.Handler.CreateBooking)
		v1.POST("/events/rsvp", cfg.Handler.RSVP)
		v1.POST("/social/interactions", cfg.Handler.PostInteraction)

		v1.GET("/pets", cfg.Handler.ListPets)
		v1.GET("/pets/:id", cfg.Handler.GetPet)

		v1.POST("/contexts", cfg.Handler.CreateContext)
		v1.POST("/contexts/:id/children", cfg.Handler.CreateChildContext)
		v1.GET("/contexts/:id", cfg.Handler.GetContext)
		v1.PATCH("/contexts/:id", cfg.Handler.UpdateContext)
		v1.GET("/contexts/:id/headers", cfg.Handler.ContextHeaders)

		v1.GET("/transactions/:id", cfg.Handler.GetTransaction)
		v1.GET("/transactions", cfg.Handler.ListTransactions)
		v1.POST("/transactions/:id/cancel", cfg.Handler.CancelTransaction)

		v1.GET("/idempotency/stats", cfg.Handler.IdempotencyStats)
		v1.DELETE("/idempotency/records/:key", cfg.Handler.InvalidateIdempotencyRecord)

		v1.GET("/system/stats", cfg.Handler.SystemStats)
		v1.POST("/system/cleanup", cfg.Handler.SystemCleanup)
	}

	return r
}
