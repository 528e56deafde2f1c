// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/shopsync-go/internal/util"
)

// TriggerSync handles POST /api/v1/sync/{tld}: runs a catalog sync for one
// shop synchronously and returns the run's metrics.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	tld := chi.URLParam(r, "tld")
	if !util.IsValidTLD(tld) {
		WriteBadRequest(w, "Invalid shop TLD", map[string]string{"tld": "two to four lowercase letters"})
		return
	}

	shop, err := h.queries.GetShopByTLD(r.Context(), tld)
	if errors.Is(err, sql.ErrNoRows) {
		WriteNotFound(w, "Shop not found: "+tld)
		return
	}
	if err != nil {
		h.log.Error("loading shop failed", "tld", tld, "error", err)
		WriteInternalError(w, "Failed to load shop")
		return
	}

	metrics, err := h.syncer.SyncShop(r.Context(), shop)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "sync_failed", err.Error(), nil)
		return
	}
	WriteSuccess(w, metrics, nil)
}

// SyncLogs handles GET /api/v1/sync-logs?limit=.
func (h *Handler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.queries.ListSyncLogs(r.Context(), limit)
	if err != nil {
		h.log.Error("listing sync logs failed", "error", err)
		WriteInternalError(w, "Failed to list sync logs")
		return
	}
	WriteSuccess(w, logs, &Meta{Total: int64(len(logs))})
}

// Events handles GET /api/v1/events?limit=: the operation log, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.Error("listing events failed", "error", err)
		WriteInternalError(w, "Failed to list events")
		return
	}
	WriteSuccess(w, events, &Meta{Total: int64(len(events))})
}
