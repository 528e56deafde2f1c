// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/shopsync-go/internal/cache"
	"github.com/olegiv/shopsync-go/internal/lightspeed"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/reconcile"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/util"
)

// ClientFactory builds a shop API client for one shop.
type ClientFactory func(shop model.Shop) (*lightspeed.Client, error)

// ProductSyncer refreshes one product from the shop API into the local
// store. Implemented by the sync service.
type ProductSyncer interface {
	SyncProduct(ctx context.Context, shop model.Shop, productID int64) error
}

// ApplyRequest carries one reconciliation payload to apply against a target
// shop. Current is the remote state the payload was diffed against; when nil
// it is loaded from the local store.
type ApplyRequest struct {
	ShopTLD   string                   `json:"targetShopTld"`
	ProductID int64                    `json:"productId,omitempty"`
	Payload   reconcile.ProductPayload `json:"updateProductData"`
	Current   *model.ProductData       `json:"currentState,omitempty"`
	Changes   []string                 `json:"changes,omitempty"`
}

// ApplyResult reports the outcome of an apply. Skipped means no effective
// change was detected and no write was performed; it is a success, not an
// error. Warning is set on partial success: the shop API write succeeded but
// the local re-sync failed, so the authoritative state has already changed
// and a retry would be unsafe.
type ApplyResult struct {
	Success   bool   `json:"success"`
	ProductID int64  `json:"productId"`
	Skipped   bool   `json:"skipped,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Notifier broadcasts product write notifications to external listeners.
type Notifier interface {
	ProductCreated(ctx context.Context, shopTLD string, productID int64, changes []string)
	ProductUpdated(ctx context.Context, shopTLD string, productID int64, changes []string)
}

// ApplyService executes reconciliation payloads against the shop API and
// records each applied change set in the operation log.
type ApplyService struct {
	queries    *store.Queries
	clients    ClientFactory
	syncer     ProductSyncer
	events     *EventService
	notifier   Notifier
	imageCache *cache.ImageCache
	log        *slog.Logger
}

// NewApplyService creates an ApplyService.
func NewApplyService(queries *store.Queries, clients ClientFactory, syncer ProductSyncer, events *EventService, log *slog.Logger) *ApplyService {
	return &ApplyService{queries: queries, clients: clients, syncer: syncer, events: events, log: log}
}

// SetNotifier attaches a write notifier, usually the webhook dispatcher.
func (s *ApplyService) SetNotifier(n Notifier) { s.notifier = n }

// SetImageCache attaches the image list cache so applied image mutations
// invalidate the cached remote list.
func (s *ApplyService) SetImageCache(c *cache.ImageCache) { s.imageCache = c }

// Update applies an update payload to an existing product.
func (s *ApplyService) Update(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	if req.ShopTLD == "" {
		return ApplyResult{}, fmt.Errorf("%w: targetShopTld is required", ErrValidation)
	}
	if req.ProductID == 0 {
		return ApplyResult{}, fmt.Errorf("%w: productId is required", ErrValidation)
	}

	shop, err := s.queries.GetShopByTLD(ctx, req.ShopTLD)
	if errors.Is(err, sql.ErrNoRows) {
		return ApplyResult{}, fmt.Errorf("%w: shop %s", ErrNotFound, req.ShopTLD)
	}
	if err != nil {
		return ApplyResult{}, fmt.Errorf("loading shop: %w", err)
	}
	base, ok := shop.DefaultLanguage()
	if !ok {
		return ApplyResult{}, fmt.Errorf("shop %s has no default language", shop.TLD)
	}

	current := req.Current
	if current == nil {
		p, err := s.queries.GetProductData(ctx, shop.ID, req.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			return ApplyResult{}, fmt.Errorf("%w: product %d in shop %s", ErrNotFound, req.ProductID, shop.TLD)
		}
		if err != nil {
			return ApplyResult{}, fmt.Errorf("loading current state: %w", err)
		}
		current = &p
	}

	client, err := s.clients(shop)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("building client: %w", err)
	}

	contentChanges := contentFieldChanges(req.Payload.ContentByLanguage, current.ContentByLanguage)
	visibilityChanged := req.Payload.Visibility != "" && req.Payload.Visibility != current.Visibility
	variantOps := reconcile.DiffVariants(req.Payload.Variants, current.Variants)

	// The image diff runs against the live list, never the snapshot alone:
	// images added or removed on the shop side since load must be seen.
	remoteImages, err := client.ListImages(ctx, base.Code, req.ProductID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("listing remote images: %w", err)
	}
	imageOps := reconcile.DiffImages(req.Payload.Images, imagesToModel(remoteImages))

	if len(contentChanges) == 0 && !visibilityChanged && variantOps.Empty() && imageOps.Empty() {
		s.log.Info("apply skipped, no effective change", "shop", shop.TLD, "product_id", req.ProductID)
		return ApplyResult{Success: true, ProductID: req.ProductID, Skipped: true}, nil
	}

	for lang, fields := range contentChanges {
		if visibilityChanged && lang == base.Code {
			fields["visibility"] = req.Payload.Visibility
		}
		if err := client.UpdateProduct(ctx, lang, req.ProductID, fields); err != nil {
			return ApplyResult{}, fmt.Errorf("updating product content (%s): %w", lang, err)
		}
	}
	if visibilityChanged {
		if _, ok := contentChanges[base.Code]; !ok {
			fields := map[string]any{"visibility": req.Payload.Visibility}
			if err := client.UpdateProduct(ctx, base.Code, req.ProductID, fields); err != nil {
				return ApplyResult{}, fmt.Errorf("updating product visibility: %w", err)
			}
		}
	}

	if err := s.applyVariantOps(ctx, client, shop, base.Code, req.ProductID, variantOps); err != nil {
		return ApplyResult{}, err
	}
	if err := s.applyImageOps(ctx, client, base.Code, req.ProductID, imageOps); err != nil {
		return ApplyResult{}, err
	}
	if s.imageCache != nil && !imageOps.Empty() {
		s.imageCache.Invalidate(ctx, shop.ID, req.ProductID)
	}

	result := ApplyResult{Success: true, ProductID: req.ProductID}
	result.Warning = s.finish(ctx, shop, req.ProductID, "Product updated", req.Changes)
	if s.notifier != nil {
		s.notifier.ProductUpdated(ctx, shop.TLD, req.ProductID, req.Changes)
	}
	return result, nil
}

// Create applies a create payload: a new product on the target shop.
func (s *ApplyService) Create(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	if req.ShopTLD == "" {
		return ApplyResult{}, fmt.Errorf("%w: targetShopTld is required", ErrValidation)
	}

	shop, err := s.queries.GetShopByTLD(ctx, req.ShopTLD)
	if errors.Is(err, sql.ErrNoRows) {
		return ApplyResult{}, fmt.Errorf("%w: shop %s", ErrNotFound, req.ShopTLD)
	}
	if err != nil {
		return ApplyResult{}, fmt.Errorf("loading shop: %w", err)
	}
	base, ok := shop.DefaultLanguage()
	if !ok {
		return ApplyResult{}, fmt.Errorf("shop %s has no default language", shop.TLD)
	}

	baseContent, ok := req.Payload.ContentByLanguage[base.Code]
	if !ok || baseContent.Title == "" {
		return ApplyResult{}, fmt.Errorf("%w: content for default language %s with a title is required", ErrValidation, base.Code)
	}

	client, err := s.clients(shop)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("building client: %w", err)
	}

	fields := contentFields(baseContent)
	if baseContent.URL == "" {
		fields["url"] = util.Slugify(baseContent.Title)
	}
	if req.Payload.Visibility != "" {
		fields["visibility"] = req.Payload.Visibility
	}
	created, err := client.CreateProduct(ctx, base.Code, fields)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("creating product: %w", err)
	}
	productID := created.ID

	for lang, content := range req.Payload.ContentByLanguage {
		if lang == base.Code || content.IsEmpty() {
			continue
		}
		if err := client.UpdateProduct(ctx, lang, productID, contentFields(content)); err != nil {
			return ApplyResult{}, fmt.Errorf("setting product content (%s): %w", lang, err)
		}
	}

	for _, v := range req.Payload.Variants {
		if err := s.createVariant(ctx, client, shop, base.Code, productID, v); err != nil {
			return ApplyResult{}, err
		}
	}

	for _, img := range req.Payload.Images {
		if _, err := client.CreateImage(ctx, base.Code, productID, img.Src); err != nil {
			return ApplyResult{}, fmt.Errorf("attaching image %s: %w", img.Src, err)
		}
	}

	result := ApplyResult{Success: true, ProductID: productID}
	result.Warning = s.finish(ctx, shop, productID, "Product created", req.Changes)
	if s.notifier != nil {
		s.notifier.ProductCreated(ctx, shop.TLD, productID, req.Changes)
	}
	return result, nil
}

// finish re-syncs the touched product locally and writes the operation log
// entry. A re-sync failure is returned as a warning string, never as an
// error: the shop API write already succeeded.
func (s *ApplyService) finish(ctx context.Context, shop model.Shop, productID int64, action string, changes []string) string {
	warning := ""
	if err := s.syncer.SyncProduct(ctx, shop, productID); err != nil {
		warning = fmt.Sprintf("product saved, but local sync failed: %v", err)
		s.log.Warn("local re-sync after apply failed", "shop", shop.TLD, "product_id", productID, "error", err)
	}

	msg := fmt.Sprintf("%s (id %d) in shop %s", action, productID, shop.TLD)
	_ = s.events.LogProductEvent(ctx, model.EventLevelInfo, msg, shop.ID, map[string]any{
		"product_id": productID,
		"changes":    changes,
	})
	return warning
}

func (s *ApplyService) applyVariantOps(ctx context.Context, client *lightspeed.Client, shop model.Shop, baseLang string, productID int64, ops reconcile.VariantOps) error {
	for _, id := range ops.Delete {
		if err := client.DeleteVariant(ctx, baseLang, id); err != nil {
			return fmt.Errorf("deleting variant %d: %w", id, err)
		}
	}
	for _, v := range ops.Update {
		fields := variantFields(v, baseLang)
		if err := client.UpdateVariant(ctx, baseLang, v.VariantID, fields); err != nil {
			return fmt.Errorf("updating variant %d: %w", v.VariantID, err)
		}
		if err := s.setVariantTitles(ctx, client, shop, baseLang, v.VariantID, v.TitleByLanguage); err != nil {
			return err
		}
	}
	for _, v := range ops.Create {
		if err := s.createVariant(ctx, client, shop, baseLang, productID, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *ApplyService) createVariant(ctx context.Context, client *lightspeed.Client, shop model.Shop, baseLang string, productID int64, v reconcile.VariantPayload) error {
	created, err := client.CreateVariant(ctx, baseLang, productID, variantFields(v, baseLang))
	if err != nil {
		return fmt.Errorf("creating variant %s: %w", v.SKU, err)
	}
	return s.setVariantTitles(ctx, client, shop, baseLang, created.ID, v.TitleByLanguage)
}

// setVariantTitles writes the non-default language titles. The title field
// is language-scoped: one PUT per language.
func (s *ApplyService) setVariantTitles(ctx context.Context, client *lightspeed.Client, shop model.Shop, baseLang string, variantID int64, titles map[string]string) error {
	for _, lang := range shop.ActiveLanguages() {
		if lang.Code == baseLang {
			continue
		}
		title, ok := titles[lang.Code]
		if !ok || title == "" {
			continue
		}
		if err := client.UpdateVariant(ctx, lang.Code, variantID, map[string]any{"title": title}); err != nil {
			return fmt.Errorf("setting variant %d title (%s): %w", variantID, lang.Code, err)
		}
	}
	return nil
}

func (s *ApplyService) applyImageOps(ctx context.Context, client *lightspeed.Client, lang string, productID int64, ops reconcile.ImageOps) error {
	for _, id := range ops.Delete {
		if err := client.DeleteImage(ctx, lang, productID, id); err != nil {
			return fmt.Errorf("deleting image %d: %w", id, err)
		}
	}
	for _, img := range ops.Create {
		if _, err := client.CreateImage(ctx, lang, productID, img.Src); err != nil {
			return fmt.Errorf("attaching image %s: %w", img.Src, err)
		}
	}
	for id, order := range ops.Reorder {
		if err := client.UpdateImage(ctx, lang, productID, id, map[string]any{"sortOrder": order}); err != nil {
			return fmt.Errorf("reordering image %d: %w", id, err)
		}
	}
	return nil
}

// contentFieldChanges returns, per language, the API field map of content
// fields that differ from the current state. Rich-text fields are sanitized
// before comparison and submission.
func contentFieldChanges(desired, current map[string]model.ProductContent) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for lang, want := range desired {
		want = want.Sanitize()
		have := current[lang]
		fields := make(map[string]any)
		for _, f := range model.ContentFields() {
			if want.Field(f) != have.Field(f) {
				fields[string(f)] = want.Field(f)
			}
		}
		if len(fields) > 0 {
			out[lang] = fields
		}
	}
	return out
}

// contentFields converts product content to the API field map.
func contentFields(c model.ProductContent) map[string]any {
	c = c.Sanitize()
	fields := map[string]any{"title": c.Title}
	if c.Fulltitle != "" {
		fields["fulltitle"] = c.Fulltitle
	}
	if c.Description != "" {
		fields["description"] = c.Description
	}
	if c.Content != "" {
		fields["content"] = c.Content
	}
	if c.URL != "" {
		fields["url"] = strings.TrimSpace(c.URL)
	}
	return fields
}

// variantFields converts a variant payload to the API field map, with the
// default-language title inline.
func variantFields(v reconcile.VariantPayload, baseLang string) map[string]any {
	fields := map[string]any{
		"sku":       v.SKU,
		"priceExcl": v.PriceExcl,
		"isDefault": v.IsDefault,
		"sortOrder": v.SortOrder,
	}
	if title := v.TitleByLanguage[baseLang]; title != "" {
		fields["title"] = title
	}
	return fields
}

func imagesToModel(images []lightspeed.Image) []model.ImageInfo {
	out := make([]model.ImageInfo, 0, len(images))
	for i := range images {
		if m := images[i].ToModel(); m != nil {
			out = append(out, *m)
		}
	}
	return out
}
