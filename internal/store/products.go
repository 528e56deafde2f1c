// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
)

// imageToJSON serializes an image reference for storage, NULL when absent.
func imageToJSON(img *model.ImageInfo) sql.NullString {
	if img == nil || img.Src == "" {
		return sql.NullString{}
	}
	data, err := json.Marshal(img)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// imageFromJSON deserializes a stored image reference.
func imageFromJSON(s sql.NullString) *model.ImageInfo {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	var img model.ImageInfo
	if err := json.Unmarshal([]byte(s.String), &img); err != nil {
		return nil
	}
	return &img
}

// UpsertProductParams holds the fields for upserting a product row.
type UpsertProductParams struct {
	ShopID          int64
	RemoteProductID int64
	Visibility      string
	Image           *model.ImageInfo
	RemoteCreatedAt time.Time
	RemoteUpdatedAt time.Time
}

// UpsertProduct inserts or updates one product row.
func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO products (shop_id, remote_product_id, visibility, image, remote_created_at, remote_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (shop_id, remote_product_id) DO UPDATE SET
		   visibility = excluded.visibility,
		   image = excluded.image,
		   remote_created_at = excluded.remote_created_at,
		   remote_updated_at = excluded.remote_updated_at`,
		arg.ShopID, arg.RemoteProductID, arg.Visibility, imageToJSON(arg.Image),
		arg.RemoteCreatedAt, arg.RemoteUpdatedAt,
	)
	return err
}

// UpsertProductContentParams holds the fields for upserting localized product content.
type UpsertProductContentParams struct {
	ShopID          int64
	RemoteProductID int64
	LanguageCode    string
	URL             string
	Title           string
	Fulltitle       string
	Description     string
	Content         string
}

// UpsertProductContent inserts or updates product content for one language.
func (q *Queries) UpsertProductContent(ctx context.Context, arg UpsertProductContentParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO product_content (shop_id, remote_product_id, language_code, url, title, fulltitle, description, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (shop_id, remote_product_id, language_code) DO UPDATE SET
		   url = excluded.url,
		   title = excluded.title,
		   fulltitle = excluded.fulltitle,
		   description = excluded.description,
		   content = excluded.content`,
		arg.ShopID, arg.RemoteProductID, arg.LanguageCode,
		arg.URL, arg.Title, arg.Fulltitle, arg.Description, arg.Content,
	)
	return err
}

// UpsertVariantParams holds the fields for upserting a variant row.
type UpsertVariantParams struct {
	ShopID          int64
	RemoteProductID int64
	RemoteVariantID int64
	SKU             string
	IsDefault       bool
	SortOrder       int
	PriceExcl       float64
	Image           *model.ImageInfo
}

// UpsertVariant inserts or updates one variant row.
func (q *Queries) UpsertVariant(ctx context.Context, arg UpsertVariantParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO variants (shop_id, remote_product_id, remote_variant_id, sku, is_default, sort_order, price_excl, image)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (shop_id, remote_variant_id) DO UPDATE SET
		   remote_product_id = excluded.remote_product_id,
		   sku = excluded.sku,
		   is_default = excluded.is_default,
		   sort_order = excluded.sort_order,
		   price_excl = excluded.price_excl,
		   image = excluded.image`,
		arg.ShopID, arg.RemoteProductID, arg.RemoteVariantID,
		arg.SKU, arg.IsDefault, arg.SortOrder, arg.PriceExcl, imageToJSON(arg.Image),
	)
	return err
}

// UpsertVariantContentParams holds the fields for upserting a localized variant title.
type UpsertVariantContentParams struct {
	ShopID          int64
	RemoteVariantID int64
	LanguageCode    string
	Title           string
}

// UpsertVariantContent inserts or updates a variant title for one language.
func (q *Queries) UpsertVariantContent(ctx context.Context, arg UpsertVariantContentParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO variant_content (shop_id, remote_variant_id, language_code, title)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (shop_id, remote_variant_id, language_code) DO UPDATE SET
		   title = excluded.title`,
		arg.ShopID, arg.RemoteVariantID, arg.LanguageCode, arg.Title,
	)
	return err
}

// ListProductRemoteIDs returns all remote product ids known for a shop.
func (q *Queries) ListProductRemoteIDs(ctx context.Context, shopID int64) ([]int64, error) {
	return q.listRemoteIDs(ctx,
		`SELECT remote_product_id FROM products WHERE shop_id = ?`, shopID)
}

// ListVariantRemoteIDs returns all remote variant ids known for a shop.
func (q *Queries) ListVariantRemoteIDs(ctx context.Context, shopID int64) ([]int64, error) {
	return q.listRemoteIDs(ctx,
		`SELECT remote_variant_id FROM variants WHERE shop_id = ?`, shopID)
}

func (q *Queries) listRemoteIDs(ctx context.Context, query string, shopID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteProductsByRemoteIDs removes products (and their content, via cascade
// on the application level) no longer present in the shop API.
func (q *Queries) DeleteProductsByRemoteIDs(ctx context.Context, shopID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args, placeholders := inArgs(shopID, ids)
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM product_content WHERE shop_id = ? AND remote_product_id IN (`+placeholders+`)`, args...); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM products WHERE shop_id = ? AND remote_product_id IN (`+placeholders+`)`, args...)
	return err
}

// DeleteVariantsByRemoteIDs removes variants no longer present in the shop API.
func (q *Queries) DeleteVariantsByRemoteIDs(ctx context.Context, shopID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args, placeholders := inArgs(shopID, ids)
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM variant_content WHERE shop_id = ? AND remote_variant_id IN (`+placeholders+`)`, args...); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM variants WHERE shop_id = ? AND remote_variant_id IN (`+placeholders+`)`, args...)
	return err
}

// inArgs builds the argument slice and placeholder list for an IN clause
// preceded by a shop_id equality check.
func inArgs(shopID int64, ids []int64) ([]any, string) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, shopID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args, strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
}

// FindProductIDsBySKU returns the remote ids of products in a shop that have
// a variant with the given SKU. Multiple ids mean duplicate SKUs.
func (q *Queries) FindProductIDsBySKU(ctx context.Context, shopID int64, sku string) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT remote_product_id FROM variants
		 WHERE shop_id = ? AND sku = ? ORDER BY remote_product_id`, shopID, sku)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetProductData assembles the full local state of one product: per-language
// content, variants and their localized titles. Returns sql.ErrNoRows when
// the product is unknown.
func (q *Queries) GetProductData(ctx context.Context, shopID, remoteProductID int64) (model.ProductData, error) {
	var p model.ProductData
	var img sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := q.db.QueryRowContext(ctx,
		`SELECT remote_product_id, visibility, image, remote_created_at, remote_updated_at
		 FROM products WHERE shop_id = ? AND remote_product_id = ?`,
		shopID, remoteProductID,
	).Scan(&p.ID, &p.Visibility, &img, &createdAt, &updatedAt)
	if err != nil {
		return model.ProductData{}, err
	}
	p.Image = imageFromJSON(img)
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}

	p.ContentByLanguage, err = q.productContent(ctx, shopID, remoteProductID)
	if err != nil {
		return model.ProductData{}, err
	}

	p.Variants, err = q.productVariants(ctx, shopID, remoteProductID)
	if err != nil {
		return model.ProductData{}, err
	}

	return p, nil
}

func (q *Queries) productContent(ctx context.Context, shopID, remoteProductID int64) (map[string]model.ProductContent, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT language_code, url, title, fulltitle, description, content
		 FROM product_content WHERE shop_id = ? AND remote_product_id = ?`,
		shopID, remoteProductID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]model.ProductContent)
	for rows.Next() {
		var lang string
		var c model.ProductContent
		if err := rows.Scan(&lang, &c.URL, &c.Title, &c.Fulltitle, &c.Description, &c.Content); err != nil {
			return nil, err
		}
		out[lang] = c
	}
	return out, rows.Err()
}

func (q *Queries) productVariants(ctx context.Context, shopID, remoteProductID int64) ([]model.Variant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT remote_variant_id, sku, is_default, sort_order, price_excl, image
		 FROM variants WHERE shop_id = ? AND remote_product_id = ?
		 ORDER BY sort_order, remote_variant_id`,
		shopID, remoteProductID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var variants []model.Variant
	for rows.Next() {
		var v model.Variant
		var img sql.NullString
		if err := rows.Scan(&v.ID, &v.SKU, &v.IsDefault, &v.SortOrder, &v.PriceExcl, &img); err != nil {
			return nil, err
		}
		v.Image = imageFromJSON(img)
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range variants {
		titles, err := q.variantTitles(ctx, shopID, variants[i].ID)
		if err != nil {
			return nil, err
		}
		variants[i].TitleByLanguage = titles
	}
	return variants, nil
}

func (q *Queries) variantTitles(ctx context.Context, shopID, remoteVariantID int64) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT language_code, title FROM variant_content
		 WHERE shop_id = ? AND remote_variant_id = ?`,
		shopID, remoteVariantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	titles := make(map[string]string)
	for rows.Next() {
		var lang, title string
		if err := rows.Scan(&lang, &title); err != nil {
			return nil, err
		}
		titles[lang] = title
	}
	return titles, rows.Err()
}
