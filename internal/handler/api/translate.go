// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/olegiv/shopsync-go/internal/middleware"
	"github.com/olegiv/shopsync-go/internal/reconcile"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// TranslateRequest is the batch translation request body. Retranslate
// forces fresh provider calls and overwrites the memoized values.
type TranslateRequest struct {
	Items       []translate.Item `json:"items"`
	Retranslate bool             `json:"retranslate,omitempty"`
}

// TranslatedItem is one item of the translation response, the input item
// with its translated text attached. Order matches the request.
type TranslatedItem struct {
	translate.Item
	TranslatedText string `json:"translatedText"`
}

// translateSession returns the caller's translation session, creating it on
// first use. Sessions are scoped per API key so one operator's repeats hit
// the memo without sharing it across keys.
func (h *Handler) translateSession(r *http.Request) *reconcile.Session {
	var id int64
	if key := middleware.GetAPIKey(r); key != nil {
		id = key.ID
	}

	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	s, ok := h.translateSessions[id]
	if !ok {
		s = reconcile.NewSession(h.translator)
		h.translateSessions[id] = s
	}
	return s
}

// Translate handles POST /api/v1/translate. Items with empty text are
// tolerated and come back empty; identical (targetLang, field, text) tuples
// are deduplicated before hitting the provider, and repeats within the
// caller's session are served from the memo unless retranslate is set.
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	if h.translator == nil {
		WriteError(w, http.StatusServiceUnavailable, "translation_unavailable", "No translation provider is configured", nil)
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	for i, item := range req.Items {
		if item.TargetLang == "" {
			WriteBadRequest(w, "Missing targetLang", map[string]string{"items": "item " + strconv.Itoa(i) + " has no targetLang"})
			return
		}
	}

	session := h.translateSession(r)
	var expanded []string
	var err error
	if req.Retranslate {
		expanded, err = session.Retranslate(r.Context(), req.Items)
	} else {
		expanded, err = session.Translate(r.Context(), req.Items)
	}
	if err != nil {
		h.log.Error("translation batch failed", "items", len(req.Items), "error", err)
		WriteError(w, http.StatusBadGateway, "translation_failed", err.Error(), nil)
		return
	}

	out := make([]TranslatedItem, len(req.Items))
	for i, item := range req.Items {
		out[i] = TranslatedItem{Item: item, TranslatedText: expanded[i]}
	}
	WriteSuccess(w, out, nil)
}
