// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/olegiv/shopsync-go/internal/model"
)

// CreateShopParams holds the fields for creating a shop.
type CreateShopParams struct {
	Name    string
	TLD     string
	BaseURL string
}

// CreateShop inserts a new shop and returns it.
func (q *Queries) CreateShop(ctx context.Context, arg CreateShopParams) (model.Shop, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO shops (name, tld, base_url) VALUES (?, ?, ?)`,
		arg.Name, arg.TLD, arg.BaseURL,
	)
	if err != nil {
		return model.Shop{}, fmt.Errorf("creating shop: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Shop{}, err
	}
	return model.Shop{ID: id, Name: arg.Name, TLD: arg.TLD, BaseURL: arg.BaseURL}, nil
}

// GetShopByTLD returns a shop with its languages loaded.
func (q *Queries) GetShopByTLD(ctx context.Context, tld string) (model.Shop, error) {
	var s model.Shop
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, tld, base_url FROM shops WHERE tld = ?`, tld,
	).Scan(&s.ID, &s.Name, &s.TLD, &s.BaseURL)
	if err != nil {
		return model.Shop{}, err
	}
	s.Languages, err = q.ListShopLanguages(ctx, s.ID)
	return s, err
}

// GetShopByID returns a shop with its languages loaded.
func (q *Queries) GetShopByID(ctx context.Context, id int64) (model.Shop, error) {
	var s model.Shop
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, tld, base_url FROM shops WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.TLD, &s.BaseURL)
	if err != nil {
		return model.Shop{}, err
	}
	s.Languages, err = q.ListShopLanguages(ctx, s.ID)
	return s, err
}

// ListShops returns all shops with their languages loaded.
func (q *Queries) ListShops(ctx context.Context) ([]model.Shop, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, tld, base_url FROM shops ORDER BY tld`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var shops []model.Shop
	for rows.Next() {
		var s model.Shop
		if err := rows.Scan(&s.ID, &s.Name, &s.TLD, &s.BaseURL); err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shops {
		shops[i].Languages, err = q.ListShopLanguages(ctx, shops[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return shops, nil
}

// ListShopLanguages returns the languages configured for a shop, default first.
func (q *Queries) ListShopLanguages(ctx context.Context, shopID int64) ([]model.Language, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT code, is_default, is_active FROM shop_languages
		 WHERE shop_id = ? ORDER BY is_default DESC, code`, shopID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var langs []model.Language
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.Code, &l.IsDefault, &l.IsActive); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// UpsertShopLanguageParams holds the fields for upserting a shop language.
type UpsertShopLanguageParams struct {
	ShopID    int64
	Code      string
	IsDefault bool
	IsActive  bool
}

// UpsertShopLanguage inserts or updates a shop language.
func (q *Queries) UpsertShopLanguage(ctx context.Context, arg UpsertShopLanguageParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO shop_languages (shop_id, code, is_default, is_active)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (shop_id, code) DO UPDATE SET
		   is_default = excluded.is_default,
		   is_active = excluded.is_active`,
		arg.ShopID, arg.Code, arg.IsDefault, arg.IsActive,
	)
	return err
}
