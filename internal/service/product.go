// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
)

// Typed failures the API layer maps to status codes: validation before any
// side effect, not-found distinct from validation.
var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// ShopMeta is the shop metadata block of the product-details document.
type ShopMeta struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	BaseURL   string           `json:"base_url"`
	Languages []model.Language `json:"languages"`
}

// ProductDetails is the document the dashboard loads one page from: the
// source product candidates, per-target-shop candidates, and shop metadata.
// Duplicates (multiple products sharing a SKU in one shop) are returned as
// arrays; the caller picks one via product_id.
type ProductDetails struct {
	Source  []model.ProductData            `json:"source"`
	Targets map[string][]model.ProductData `json:"targets"`
	Shops   map[string]ShopMeta            `json:"shops"`
}

// ProductService assembles product-details documents from the local store.
type ProductService struct {
	queries   *store.Queries
	sourceTLD string
}

// NewProductService creates a ProductService. sourceTLD names the shop whose
// catalog is the synchronization source.
func NewProductService(queries *store.Queries, sourceTLD string) *ProductService {
	return &ProductService{queries: queries, sourceTLD: sourceTLD}
}

// Details looks up a product by SKU and/or source product id across all
// shops. At least one of sku, productID must be given.
func (s *ProductService) Details(ctx context.Context, sku string, productID int64) (*ProductDetails, error) {
	if sku == "" && productID == 0 {
		return nil, fmt.Errorf("%w: sku or product_id is required", ErrValidation)
	}

	shops, err := s.queries.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing shops: %w", err)
	}

	var sourceShop *model.Shop
	for i := range shops {
		if shops[i].TLD == s.sourceTLD {
			sourceShop = &shops[i]
			break
		}
	}
	if sourceShop == nil {
		return nil, fmt.Errorf("source shop %q is not configured", s.sourceTLD)
	}

	doc := &ProductDetails{
		Targets: make(map[string][]model.ProductData),
		Shops:   make(map[string]ShopMeta, len(shops)),
	}
	for _, shop := range shops {
		doc.Shops[shop.TLD] = ShopMeta{
			ID: shop.ID, Name: shop.Name, BaseURL: shop.BaseURL, Languages: shop.Languages,
		}
	}

	// Resolve the source candidates first; a bare product_id lookup derives
	// the SKU for the target matching below.
	doc.Source, err = s.shopCandidates(ctx, *sourceShop, sku, productID)
	if err != nil {
		return nil, err
	}
	if len(doc.Source) == 0 {
		return nil, fmt.Errorf("%w: no product matches sku=%q product_id=%d", ErrNotFound, sku, productID)
	}
	if sku == "" {
		sku = doc.Source[0].SKU()
	}

	for _, shop := range shops {
		if shop.TLD == sourceShop.TLD {
			continue
		}
		candidates, err := s.shopCandidates(ctx, shop, sku, 0)
		if err != nil {
			return nil, err
		}
		doc.Targets[shop.TLD] = candidates
	}
	return doc, nil
}

// shopCandidates returns the products in one shop matching the lookup. A
// product id takes precedence over the SKU; the SKU may match several
// products when duplicated.
func (s *ProductService) shopCandidates(ctx context.Context, shop model.Shop, sku string, productID int64) ([]model.ProductData, error) {
	var ids []int64
	if productID != 0 {
		ids = []int64{productID}
	} else {
		var err error
		ids, err = s.queries.FindProductIDsBySKU(ctx, shop.ID, sku)
		if err != nil {
			return nil, fmt.Errorf("looking up sku in shop %s: %w", shop.TLD, err)
		}
	}

	var out []model.ProductData
	for _, id := range ids {
		p, err := s.queries.GetProductData(ctx, shop.ID, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading product %d in shop %s: %w", id, shop.TLD, err)
		}
		out = append(out, p)
	}
	return out, nil
}
