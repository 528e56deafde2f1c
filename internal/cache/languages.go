// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"sync"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
)

// LanguageCache provides cached access to shop languages.
// Shop language sets change rarely but are consulted on every
// reconciliation, so they are kept in process memory until invalidated.
type LanguageCache struct {
	queries *store.Queries
	mu      sync.RWMutex
	byShop  map[int64][]model.Language
}

// NewLanguageCache creates a new language cache.
func NewLanguageCache(queries *store.Queries) *LanguageCache {
	return &LanguageCache{
		queries: queries,
		byShop:  make(map[int64][]model.Language),
	}
}

// ForShop retrieves all languages of a shop, default language first.
func (c *LanguageCache) ForShop(ctx context.Context, shopID int64) ([]model.Language, error) {
	c.mu.RLock()
	langs, ok := c.byShop[shopID]
	c.mu.RUnlock()
	if ok {
		result := make([]model.Language, len(langs))
		copy(result, langs)
		return result, nil
	}

	langs, err := c.queries.ListShopLanguages(ctx, shopID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byShop[shopID] = langs
	c.mu.Unlock()

	result := make([]model.Language, len(langs))
	copy(result, langs)
	return result, nil
}

// Default retrieves the default language of a shop, or nil when the shop has
// no languages configured.
func (c *LanguageCache) Default(ctx context.Context, shopID int64) (*model.Language, error) {
	langs, err := c.ForShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	for _, lang := range langs {
		if lang.IsDefault {
			l := lang
			return &l, nil
		}
	}
	return nil, nil
}

// IsActiveCode checks whether a language code is active for a shop.
func (c *LanguageCache) IsActiveCode(ctx context.Context, shopID int64, code string) (bool, error) {
	langs, err := c.ForShop(ctx, shopID)
	if err != nil {
		return false, err
	}
	for _, lang := range langs {
		if lang.Code == code {
			return lang.IsActive, nil
		}
	}
	return false, nil
}

// InvalidateShop clears the cached languages of one shop.
func (c *LanguageCache) InvalidateShop(shopID int64) {
	c.mu.Lock()
	delete(c.byShop, shopID)
	c.mu.Unlock()
}

// Invalidate clears the cache, forcing a reload on next access.
func (c *LanguageCache) Invalidate() {
	c.mu.Lock()
	c.byShop = make(map[int64][]model.Language)
	c.mu.Unlock()
}
