// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/shopsync-go/internal/cache"
	"github.com/olegiv/shopsync-go/internal/model"
)

// ImageService serves remote product image lists on demand. The dashboard
// loads them lazily when the images tab opens; the short-lived cache keeps
// repeated edits of the same product from refetching the list every time.
type ImageService struct {
	shops   ShopLoader
	clients ClientFactory
	images  *cache.ImageCache
	langs   *cache.LanguageCache
}

// ShopLoader resolves shops by TLD.
type ShopLoader interface {
	GetShopByTLD(ctx context.Context, tld string) (model.Shop, error)
}

// NewImageService creates an ImageService on top of the cache manager.
func NewImageService(shops ShopLoader, clients ClientFactory, m *cache.Manager) *ImageService {
	return &ImageService{shops: shops, clients: clients, images: m.Images, langs: m.Languages}
}

// List returns the remote image list of a product, cached for a short TTL.
func (s *ImageService) List(ctx context.Context, tld string, productID int64) ([]model.ImageInfo, error) {
	if tld == "" {
		return nil, fmt.Errorf("%w: shop is required", ErrValidation)
	}
	if productID == 0 {
		return nil, fmt.Errorf("%w: product_id is required", ErrValidation)
	}

	shop, err := s.shops.GetShopByTLD(ctx, tld)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shop %s", ErrNotFound, tld)
	}
	if err != nil {
		return nil, fmt.Errorf("loading shop: %w", err)
	}

	langs, err := s.langs.ForShop(ctx, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("loading shop languages: %w", err)
	}
	base := ""
	for _, l := range langs {
		if l.IsDefault {
			base = l.Code
			break
		}
	}
	if base == "" {
		return nil, fmt.Errorf("shop %s has no default language", tld)
	}

	return s.images.GetOrFetch(ctx, shop.ID, productID, func() ([]model.ImageInfo, error) {
		client, err := s.clients(shop)
		if err != nil {
			return nil, err
		}
		images, err := client.ListImages(ctx, base, productID)
		if err != nil {
			return nil, fmt.Errorf("listing images for product %d: %w", productID, err)
		}
		return imagesToModel(images), nil
	})
}

// Invalidate drops the cached list after an image mutation was applied.
func (s *ImageService) Invalidate(ctx context.Context, shopID, productID int64) {
	s.images.Invalidate(ctx, shopID, productID)
}
