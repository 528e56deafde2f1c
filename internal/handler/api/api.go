// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers for the synchronization
// dashboard.
package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/shopsync-go/internal/middleware"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/reconcile"
	"github.com/olegiv/shopsync-go/internal/service"
	"github.com/olegiv/shopsync-go/internal/store"
	catalog "github.com/olegiv/shopsync-go/internal/sync"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db         *sql.DB
	queries    *store.Queries
	products   *service.ProductService
	apply      *service.ApplyService
	events     *service.EventService
	images     *service.ImageService // nil disables the images endpoint
	edit       *service.EditService  // nil disables the edit session endpoints
	syncer     *catalog.Service
	translator translate.Provider // nil when no provider is configured
	log        *slog.Logger
	startTime  time.Time

	// translateSessions scopes the translation memo per API key so repeat
	// requests short-circuit and re-translate can overwrite.
	sessMu            sync.Mutex
	translateSessions map[int64]*reconcile.Session
}

// NewHandler creates a new API handler.
func NewHandler(db *sql.DB, products *service.ProductService, apply *service.ApplyService, events *service.EventService, syncer *catalog.Service, translator translate.Provider, log *slog.Logger) *Handler {
	return &Handler{
		db:                db,
		queries:           store.New(db),
		products:          products,
		apply:             apply,
		events:            events,
		syncer:            syncer,
		translator:        translator,
		log:               log,
		startTime:         time.Now(),
		translateSessions: make(map[int64]*reconcile.Session),
	}
}

// SetImageService enables the deferred image list endpoint.
func (h *Handler) SetImageService(s *service.ImageService) { h.images = s }

// SetEditService enables the edit session endpoints.
func (h *Handler) SetEditService(s *service.EditService) { h.edit = s }

// Routes mounts the versioned API routes. Write routes require an API key
// with the matching permission.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(h.db))
		r.Use(middleware.APIRateLimit(10, 20))

		r.With(middleware.RequirePermission(model.PermissionProductsRead)).
			Get("/product-details", h.ProductDetails)
		r.With(middleware.RequirePermission(model.PermissionTranslate)).
			Post("/translate", h.Translate)
		r.With(middleware.RequirePermission(model.PermissionProductsWrite)).
			Post("/products", h.CreateProduct)
		r.With(middleware.RequirePermission(model.PermissionProductsWrite)).
			Put("/products/{id}", h.UpdateProduct)
		r.With(middleware.RequirePermission(model.PermissionProductsRead)).
			Get("/products/{id}/images", h.ProductImages)
		r.With(middleware.RequirePermission(model.PermissionProductsRead)).
			Route("/edit-sessions", func(r chi.Router) {
				r.Post("/", h.OpenEditSession)
				r.Get("/{sid}", h.EditSessionState)
				r.Post("/{sid}/actions", h.EditSessionActions)
				r.Get("/{sid}/payload", h.EditSessionPayload)
				r.Delete("/{sid}", h.CloseEditSession)
			})
		r.With(middleware.RequirePermission(model.PermissionSyncRun)).
			Post("/sync/{tld}", h.TriggerSync)
		r.With(middleware.RequirePermission(model.PermissionSyncRun)).
			Get("/sync-logs", h.SyncLogs)
		r.With(middleware.RequirePermission(model.PermissionProductsRead)).
			Get("/events", h.Events)
	})

	r.Get("/status", h.Status)
	return r
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: "v1"}, nil)
}
