// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/shopsync-go/internal/service"
)

// OpenEditSessionRequest is the body of POST /api/v1/edit-sessions.
type OpenEditSessionRequest struct {
	SKU       string `json:"sku"`
	ProductID int64  `json:"product_id"`
}

// EditSessionActionsRequest is the body of the action replay endpoint.
type EditSessionActionsRequest struct {
	Actions []service.EditAction `json:"actions"`
}

func (h *Handler) editUnavailable(w http.ResponseWriter) bool {
	if h.edit == nil {
		WriteError(w, http.StatusServiceUnavailable, "edit_unavailable", "Edit sessions are not configured", nil)
		return true
	}
	return false
}

func (h *Handler) writeEditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		WriteBadRequest(w, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		h.log.Error("edit session operation failed", "error", err)
		WriteError(w, http.StatusBadGateway, "translation_failed", err.Error(), nil)
	}
}

// OpenEditSession handles POST /api/v1/edit-sessions: resolves a product
// and builds per-shop edit buffers, translating create-mode shops in one
// batched call.
func (h *Handler) OpenEditSession(w http.ResponseWriter, r *http.Request) {
	if h.editUnavailable(w) {
		return
	}

	var req OpenEditSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	view, err := h.edit.Open(r.Context(), req.SKU, req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			WriteBadRequest(w, err.Error(), map[string]string{"sku": "sku or product_id is required"})
		case errors.Is(err, service.ErrNotFound):
			WriteNotFound(w, err.Error())
		default:
			h.log.Error("opening edit session failed", "error", err)
			WriteInternalError(w, "Failed to open edit session")
		}
		return
	}
	WriteCreated(w, view)
}

// EditSessionState handles GET /api/v1/edit-sessions/{sid}.
func (h *Handler) EditSessionState(w http.ResponseWriter, r *http.Request) {
	if h.editUnavailable(w) {
		return
	}

	view, err := h.edit.Get(chi.URLParam(r, "sid"))
	if err != nil {
		h.writeEditError(w, err)
		return
	}
	WriteSuccess(w, view, nil)
}

// EditSessionActions handles POST /api/v1/edit-sessions/{sid}/actions:
// replays edit actions onto the session's buffers and returns the updated
// state with the tracked change list per shop.
func (h *Handler) EditSessionActions(w http.ResponseWriter, r *http.Request) {
	if h.editUnavailable(w) {
		return
	}

	var req EditSessionActionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	view, err := h.edit.Act(r.Context(), chi.URLParam(r, "sid"), req.Actions)
	if err != nil {
		h.writeEditError(w, err)
		return
	}
	WriteSuccess(w, view, nil)
}

// EditSessionPayload handles GET /api/v1/edit-sessions/{sid}/payload?shop=:
// the submit-ready payload and change list for one target shop.
func (h *Handler) EditSessionPayload(w http.ResponseWriter, r *http.Request) {
	if h.editUnavailable(w) {
		return
	}

	shop := r.URL.Query().Get("shop")
	if shop == "" {
		WriteBadRequest(w, "Missing shop", map[string]string{"shop": "shop TLD is required"})
		return
	}

	payload, err := h.edit.Payload(chi.URLParam(r, "sid"), shop)
	if err != nil {
		h.writeEditError(w, err)
		return
	}
	WriteSuccess(w, payload, nil)
}

// CloseEditSession handles DELETE /api/v1/edit-sessions/{sid}.
func (h *Handler) CloseEditSession(w http.ResponseWriter, r *http.Request) {
	if h.editUnavailable(w) {
		return
	}

	if err := h.edit.Close(chi.URLParam(r, "sid")); err != nil {
		h.writeEditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
