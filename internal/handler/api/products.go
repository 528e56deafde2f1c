// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/shopsync-go/internal/service"
)

// ProductDetails handles GET /api/v1/product-details?sku=&product_id=.
// At least one of the two parameters is required; a bare product_id resolves
// the SKU from the source shop for target matching.
func (h *Handler) ProductDetails(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")

	var productID int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		var err error
		productID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteBadRequest(w, "Invalid product_id", map[string]string{"product_id": "must be an integer"})
			return
		}
	}

	doc, err := h.products.Details(r.Context(), sku, productID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			WriteBadRequest(w, err.Error(), map[string]string{"sku": "sku or product_id is required"})
		case errors.Is(err, service.ErrNotFound):
			WriteNotFound(w, "No product matches the given sku or product_id")
		default:
			h.log.Error("product details lookup failed", "error", err)
			WriteInternalError(w, "Failed to load product details")
		}
		return
	}

	WriteSuccess(w, doc, nil)
}

// applyResponse converts a service apply outcome to the wire shape the
// dashboard expects.
func applyResponse(w http.ResponseWriter, res service.ApplyResult, created bool) {
	if created {
		WriteCreated(w, res)
		return
	}
	WriteSuccess(w, res, nil)
}

func (h *Handler) decodeApplyRequest(w http.ResponseWriter, r *http.Request) (service.ApplyRequest, bool) {
	var req service.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body", nil)
		return service.ApplyRequest{}, false
	}
	return req, true
}

func (h *Handler) writeApplyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		WriteBadRequest(w, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		h.log.Error("apply failed", "error", err)
		WriteError(w, http.StatusBadGateway, "upstream_error", err.Error(), nil)
	}
}

// UpdateProduct handles PUT /api/v1/products/{id}: applies an update payload
// to an existing product on a target shop.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid product ID", nil)
		return
	}

	req, ok := h.decodeApplyRequest(w, r)
	if !ok {
		return
	}
	req.ProductID = id

	res, err := h.apply.Update(r.Context(), req)
	if err != nil {
		h.writeApplyError(w, err)
		return
	}
	applyResponse(w, res, false)
}

// CreateProduct handles POST /api/v1/products: creates a product on a
// target shop from a create payload.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeApplyRequest(w, r)
	if !ok {
		return
	}

	res, err := h.apply.Create(r.Context(), req)
	if err != nil {
		h.writeApplyError(w, err)
		return
	}
	applyResponse(w, res, true)
}

// ProductImages handles GET /api/v1/products/{id}/images?shop=: the remote
// image list of one product, fetched lazily and cached for a short TTL.
func (h *Handler) ProductImages(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		WriteError(w, http.StatusServiceUnavailable, "images_unavailable", "Image listing is not configured", nil)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid product ID", nil)
		return
	}

	images, err := h.images.List(r.Context(), r.URL.Query().Get("shop"), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			WriteBadRequest(w, err.Error(), map[string]string{"shop": "shop TLD is required"})
		case errors.Is(err, service.ErrNotFound):
			WriteNotFound(w, err.Error())
		default:
			h.log.Error("listing product images failed", "product_id", id, "error", err)
			WriteError(w, http.StatusBadGateway, "upstream_error", err.Error(), nil)
		}
		return
	}
	WriteSuccess(w, images, &Meta{Total: int64(len(images))})
}
