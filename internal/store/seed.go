// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Seed creates demo shops when seeding is enabled and the database is empty.
// Production deployments register shops through migrations or the API.
func Seed(ctx context.Context, db *sql.DB, doSeed bool) error {
	if !doSeed {
		return nil
	}

	queries := New(db)
	shops, err := queries.ListShops(ctx)
	if err != nil {
		return fmt.Errorf("listing shops: %w", err)
	}
	if len(shops) > 0 {
		return nil
	}

	demo := []struct {
		name     string
		tld      string
		langs    []string
		deflang  string
	}{
		{name: "Demo NL", tld: "nl", langs: []string{"nl", "en"}, deflang: "nl"},
		{name: "Demo BE", tld: "be", langs: []string{"nl", "fr"}, deflang: "nl"},
		{name: "Demo DE", tld: "de", langs: []string{"de"}, deflang: "de"},
	}

	for _, d := range demo {
		shop, err := queries.CreateShop(ctx, CreateShopParams{Name: d.name, TLD: d.tld})
		if err != nil {
			return fmt.Errorf("seeding shop %s: %w", d.tld, err)
		}
		for _, code := range d.langs {
			if err := queries.UpsertShopLanguage(ctx, UpsertShopLanguageParams{
				ShopID:    shop.ID,
				Code:      code,
				IsDefault: code == d.deflang,
				IsActive:  true,
			}); err != nil {
				return fmt.Errorf("seeding language %s for shop %s: %w", code, d.tld, err)
			}
		}
	}

	slog.Info("seeded demo shops", "count", len(demo))
	return nil
}
