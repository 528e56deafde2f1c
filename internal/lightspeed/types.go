// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lightspeed

import (
	"encoding/json"

	"github.com/olegiv/shopsync-go/internal/model"
)

// Image is a product or variant image as returned by the shop API.
type Image struct {
	ID        int64  `json:"id,omitempty"`
	SortOrder int    `json:"sortOrder,omitempty"`
	Src       string `json:"src"`
	Thumb     string `json:"thumb"`
	Title     string `json:"title"`
}

// UnmarshalJSON tolerates the API returning false instead of an object
// when no image is set.
func (im *Image) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "false" || s == "null" {
		*im = Image{}
		return nil
	}
	type alias Image
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*im = Image(a)
	return nil
}

// IsZero reports whether the image carries no data.
func (im *Image) IsZero() bool {
	return im == nil || (im.Src == "" && im.Thumb == "" && im.ID == 0)
}

// ToModel converts the image to the normalized form stored in the database.
// Returns nil for absent images.
func (im *Image) ToModel() *model.ImageInfo {
	if im.IsZero() {
		return nil
	}
	return &model.ImageInfo{
		ID:        im.ID,
		Src:       im.Src,
		Thumb:     im.Thumb,
		Title:     im.Title,
		SortOrder: im.SortOrder,
	}
}

// Product is a product as returned by the shop API, limited to the fields
// the dashboard requests.
type Product struct {
	ID          int64  `json:"id"`
	Visibility  string `json:"visibility"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Fulltitle   string `json:"fulltitle"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Image       *Image `json:"image"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// variantProduct is the nested product reference on a variant.
type variantProduct struct {
	Resource struct {
		ID int64 `json:"id"`
	} `json:"resource"`
}

// Variant is a variant as returned by the shop API.
type Variant struct {
	ID        int64           `json:"id"`
	IsDefault bool            `json:"isDefault"`
	SKU       string          `json:"sku"`
	PriceExcl float64         `json:"priceExcl"`
	SortOrder int             `json:"sortOrder,omitempty"`
	Title     string          `json:"title"`
	Image     *Image          `json:"image"`
	Product   *variantProduct `json:"product,omitempty"`
}

// ProductID returns the id of the product this variant belongs to,
// or 0 when the reference is missing.
func (v *Variant) ProductID() int64 {
	if v.Product == nil {
		return 0
	}
	return v.Product.Resource.ID
}
