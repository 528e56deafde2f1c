// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
)

// imageListTTL is deliberately short: remote image lists can change from the
// shop backoffice at any time, and a stale list would corrupt image diffs.
const imageListTTL = 5 * time.Minute

// ImageCache caches remote product image lists per shop and product.
// It backs the image pickers in the dashboard so repeated edits of the same
// product do not refetch the full image list on every request.
type ImageCache struct {
	typed *TypedCache[[]model.ImageInfo]
}

// NewImageCache creates a new image cache on top of the given backend.
func NewImageCache(backend Cacher) *ImageCache {
	return &ImageCache{
		typed: NewTypedCache[[]model.ImageInfo](backend, imageListTTL),
	}
}

func imageKey(shopID, productID int64) string {
	return fmt.Sprintf("images:%d:%d", shopID, productID)
}

// Get retrieves the cached image list for a product.
func (c *ImageCache) Get(ctx context.Context, shopID, productID int64) ([]model.ImageInfo, bool) {
	images, ok := c.typed.Get(ctx, imageKey(shopID, productID))
	if !ok {
		return nil, false
	}
	return *images, true
}

// Set stores the image list for a product.
func (c *ImageCache) Set(ctx context.Context, shopID, productID int64, images []model.ImageInfo) error {
	return c.typed.Set(ctx, imageKey(shopID, productID), &images)
}

// GetOrFetch retrieves the cached image list, or calls fetch and caches the
// result on a miss.
func (c *ImageCache) GetOrFetch(ctx context.Context, shopID, productID int64, fetch func() ([]model.ImageInfo, error)) ([]model.ImageInfo, error) {
	images, err := c.typed.GetOrSet(ctx, imageKey(shopID, productID), func() (*[]model.ImageInfo, error) {
		list, err := fetch()
		if err != nil {
			return nil, err
		}
		return &list, nil
	})
	if err != nil {
		return nil, err
	}
	return *images, nil
}

// Invalidate drops the cached image list for a product. Called after any
// image mutation is applied upstream.
func (c *ImageCache) Invalidate(ctx context.Context, shopID, productID int64) {
	_ = c.typed.Delete(ctx, imageKey(shopID, productID))
}
