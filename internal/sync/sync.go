// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sync mirrors shop catalogs into the local store. Each run fetches
// products and variants for a shop's default language, upserts them, removes
// rows the shop no longer has, then syncs content for the remaining active
// languages. Every run is recorded in sync_logs with its metrics.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/shopsync-go/internal/lightspeed"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
)

// ClientFactory builds a shop API client for one shop. Credentials are
// per-TLD, so the factory resolves them at call time.
type ClientFactory func(shop model.Shop) (*lightspeed.Client, error)

// Notifier receives sync lifecycle notifications. Implemented by the
// webhook dispatcher; nil-safe in the service.
type Notifier interface {
	SyncCompleted(shop model.Shop, metrics model.SyncMetrics)
}

// Service runs catalog syncs.
type Service struct {
	queries  *store.Queries
	clients  ClientFactory
	notifier Notifier
	log      *slog.Logger
}

// NewService creates a catalog sync service.
func NewService(queries *store.Queries, clients ClientFactory, log *slog.Logger) *Service {
	return &Service{queries: queries, clients: clients, log: log}
}

// SetNotifier attaches a lifecycle notifier. Must be called before the
// first sync run.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SyncAll syncs every configured shop concurrently. A failing shop is
// logged and recorded in its sync log but does not abort the others.
func (s *Service) SyncAll(ctx context.Context) error {
	shops, err := s.queries.ListShops(ctx)
	if err != nil {
		return fmt.Errorf("listing shops: %w", err)
	}

	var wg sync.WaitGroup
	for _, shop := range shops {
		wg.Add(1)
		go func(shop model.Shop) {
			defer wg.Done()
			if _, err := s.SyncShop(ctx, shop); err != nil {
				s.log.Error("shop sync failed", "shop", shop.TLD, "error", err)
			}
		}(shop)
	}
	wg.Wait()
	return nil
}

// SyncShop syncs one shop's catalog and records the run in sync_logs.
func (s *Service) SyncShop(ctx context.Context, shop model.Shop) (model.SyncMetrics, error) {
	logID, err := s.queries.CreateSyncLog(ctx, shop.ID)
	if err != nil {
		return model.SyncMetrics{}, fmt.Errorf("creating sync log: %w", err)
	}

	started := time.Now()
	s.log.Info("catalog sync started", "shop", shop.TLD)

	metrics, syncErr := s.syncCatalog(ctx, shop)

	status := model.SyncStatusSuccess
	errMsg := ""
	if syncErr != nil {
		status = model.SyncStatusError
		errMsg = syncErr.Error()
	}
	if err := s.queries.CompleteSyncLog(ctx, store.CompleteSyncLogParams{
		ID:           logID,
		Status:       status,
		Metrics:      metrics,
		ErrorMessage: errMsg,
	}); err != nil {
		s.log.Error("completing sync log failed", "shop", shop.TLD, "error", err)
	}

	if syncErr != nil {
		return metrics, syncErr
	}

	s.log.Info("catalog sync completed",
		"shop", shop.TLD,
		"duration", time.Since(started).Round(time.Millisecond),
		"products", metrics.ProductsSynced,
		"variants", metrics.VariantsSynced,
	)
	if s.notifier != nil {
		s.notifier.SyncCompleted(shop, metrics)
	}
	return metrics, nil
}

func (s *Service) syncCatalog(ctx context.Context, shop model.Shop) (model.SyncMetrics, error) {
	var metrics model.SyncMetrics

	base, ok := shop.DefaultLanguage()
	if !ok {
		return metrics, fmt.Errorf("shop %s has no default language", shop.TLD)
	}

	client, err := s.clients(shop)
	if err != nil {
		return metrics, fmt.Errorf("building client: %w", err)
	}

	products, variants, err := fetchCatalog(ctx, client, base.Code)
	if err != nil {
		return metrics, err
	}
	metrics.ProductsFetched = len(products)
	metrics.VariantsFetched = len(variants)

	productIDs := make(map[int64]bool, len(products))
	for _, p := range products {
		productIDs[p.ID] = true
	}

	// Variants referencing an unknown product are skipped, not failed:
	// the listing can race product deletion on the shop side.
	kept := variants[:0]
	for _, v := range variants {
		if !productIDs[v.ProductID()] {
			metrics.VariantsFiltered++
			s.log.Warn("variant references unknown product",
				"shop", shop.TLD, "variant_id", v.ID, "product_id", v.ProductID())
			continue
		}
		kept = append(kept, v)
	}
	variants = kept

	if err := s.upsertBase(ctx, shop, base.Code, products, variants, &metrics); err != nil {
		return metrics, err
	}
	if err := s.deleteOrphans(ctx, shop, products, variants, &metrics); err != nil {
		return metrics, err
	}

	for _, lang := range shop.ActiveLanguages() {
		if lang.IsDefault {
			continue
		}
		if err := s.syncLanguageContent(ctx, client, shop, lang.Code, productIDs); err != nil {
			return metrics, fmt.Errorf("syncing language %s: %w", lang.Code, err)
		}
	}

	return metrics, nil
}

// fetchCatalog retrieves products and variants for one language concurrently.
func fetchCatalog(ctx context.Context, client *lightspeed.Client, lang string) ([]lightspeed.Product, []lightspeed.Variant, error) {
	var (
		products []lightspeed.Product
		variants []lightspeed.Variant
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = client.FetchProducts(ctx, lang)
		return err
	})
	g.Go(func() error {
		var err error
		variants, err = client.FetchVariants(ctx, lang)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, variants, nil
}

func (s *Service) upsertBase(ctx context.Context, shop model.Shop, lang string, products []lightspeed.Product, variants []lightspeed.Variant, metrics *model.SyncMetrics) error {
	for _, p := range products {
		if err := s.queries.UpsertProduct(ctx, store.UpsertProductParams{
			ShopID:          shop.ID,
			RemoteProductID: p.ID,
			Visibility:      p.Visibility,
			Image:           p.Image.ToModel(),
			RemoteCreatedAt: parseAPITime(p.CreatedAt),
			RemoteUpdatedAt: parseAPITime(p.UpdatedAt),
		}); err != nil {
			return fmt.Errorf("upserting product %d: %w", p.ID, err)
		}
		if err := s.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
			ShopID:          shop.ID,
			RemoteProductID: p.ID,
			LanguageCode:    lang,
			URL:             p.URL,
			Title:           p.Title,
			Fulltitle:       p.Fulltitle,
			Description:     p.Description,
			Content:         p.Content,
		}); err != nil {
			return fmt.Errorf("upserting product content %d: %w", p.ID, err)
		}
		metrics.ProductsSynced++
	}

	// The listing carries no explicit sort order; position within the
	// product is the order the shop presents.
	seq := make(map[int64]int, len(products))
	for _, v := range variants {
		pid := v.ProductID()
		seq[pid]++
		if err := s.queries.UpsertVariant(ctx, store.UpsertVariantParams{
			ShopID:          shop.ID,
			RemoteProductID: pid,
			RemoteVariantID: v.ID,
			SKU:             v.SKU,
			IsDefault:       v.IsDefault,
			SortOrder:       seq[pid],
			PriceExcl:       v.PriceExcl,
			Image:           v.Image.ToModel(),
		}); err != nil {
			return fmt.Errorf("upserting variant %d: %w", v.ID, err)
		}
		if err := s.queries.UpsertVariantContent(ctx, store.UpsertVariantContentParams{
			ShopID:          shop.ID,
			RemoteVariantID: v.ID,
			LanguageCode:    lang,
			Title:           v.Title,
		}); err != nil {
			return fmt.Errorf("upserting variant content %d: %w", v.ID, err)
		}
		metrics.VariantsSynced++
	}
	return nil
}

// deleteOrphans removes local rows the shop API no longer returns.
func (s *Service) deleteOrphans(ctx context.Context, shop model.Shop, products []lightspeed.Product, variants []lightspeed.Variant, metrics *model.SyncMetrics) error {
	fetched := make(map[int64]bool, len(products))
	for _, p := range products {
		fetched[p.ID] = true
	}
	localProducts, err := s.queries.ListProductRemoteIDs(ctx, shop.ID)
	if err != nil {
		return fmt.Errorf("listing local products: %w", err)
	}
	var staleProducts []int64
	for _, id := range localProducts {
		if !fetched[id] {
			staleProducts = append(staleProducts, id)
		}
	}
	if err := s.queries.DeleteProductsByRemoteIDs(ctx, shop.ID, staleProducts); err != nil {
		return fmt.Errorf("deleting stale products: %w", err)
	}
	metrics.ProductsDeleted = len(staleProducts)

	fetchedVariants := make(map[int64]bool, len(variants))
	for _, v := range variants {
		fetchedVariants[v.ID] = true
	}
	localVariants, err := s.queries.ListVariantRemoteIDs(ctx, shop.ID)
	if err != nil {
		return fmt.Errorf("listing local variants: %w", err)
	}
	var staleVariants []int64
	for _, id := range localVariants {
		if !fetchedVariants[id] {
			staleVariants = append(staleVariants, id)
		}
	}
	if err := s.queries.DeleteVariantsByRemoteIDs(ctx, shop.ID, staleVariants); err != nil {
		return fmt.Errorf("deleting stale variants: %w", err)
	}
	metrics.VariantsDeleted = len(staleVariants)
	return nil
}

// syncLanguageContent fetches a secondary language and upserts content rows
// only, restricted to products and variants known from the base pass.
func (s *Service) syncLanguageContent(ctx context.Context, client *lightspeed.Client, shop model.Shop, lang string, validProducts map[int64]bool) error {
	products, variants, err := fetchCatalog(ctx, client, lang)
	if err != nil {
		return err
	}

	for _, p := range products {
		if !validProducts[p.ID] {
			continue
		}
		if err := s.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
			ShopID:          shop.ID,
			RemoteProductID: p.ID,
			LanguageCode:    lang,
			URL:             p.URL,
			Title:           p.Title,
			Fulltitle:       p.Fulltitle,
			Description:     p.Description,
			Content:         p.Content,
		}); err != nil {
			return fmt.Errorf("upserting product content %d: %w", p.ID, err)
		}
	}

	for _, v := range variants {
		if !validProducts[v.ProductID()] {
			continue
		}
		if err := s.queries.UpsertVariantContent(ctx, store.UpsertVariantContentParams{
			ShopID:          shop.ID,
			RemoteVariantID: v.ID,
			LanguageCode:    lang,
			Title:           v.Title,
		}); err != nil {
			return fmt.Errorf("upserting variant content %d: %w", v.ID, err)
		}
	}
	return nil
}

// SyncProduct refreshes one product from the shop API across all active
// languages. Used after an apply so local state reflects the write.
func (s *Service) SyncProduct(ctx context.Context, shop model.Shop, productID int64) error {
	client, err := s.clients(shop)
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	base, ok := shop.DefaultLanguage()
	if !ok {
		return fmt.Errorf("shop %s has no default language", shop.TLD)
	}

	for i, lang := range shop.ActiveLanguages() {
		p, err := client.GetProduct(ctx, lang.Code, productID)
		if err != nil {
			return fmt.Errorf("fetching product %d (%s): %w", productID, lang.Code, err)
		}
		if i == 0 || lang.Code == base.Code {
			if err := s.queries.UpsertProduct(ctx, store.UpsertProductParams{
				ShopID:          shop.ID,
				RemoteProductID: p.ID,
				Visibility:      p.Visibility,
				Image:           p.Image.ToModel(),
				RemoteCreatedAt: parseAPITime(p.CreatedAt),
				RemoteUpdatedAt: parseAPITime(p.UpdatedAt),
			}); err != nil {
				return fmt.Errorf("upserting product %d: %w", p.ID, err)
			}
		}
		if err := s.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
			ShopID:          shop.ID,
			RemoteProductID: p.ID,
			LanguageCode:    lang.Code,
			URL:             p.URL,
			Title:           p.Title,
			Fulltitle:       p.Fulltitle,
			Description:     p.Description,
			Content:         p.Content,
		}); err != nil {
			return fmt.Errorf("upserting product content %d: %w", p.ID, err)
		}
	}
	return nil
}

// parseAPITime parses the shop API timestamp format, zero on failure.
func parseAPITime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
