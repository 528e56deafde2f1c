// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import "time"

// Visibility values as reported by the shop API.
const (
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
	VisibilityAuto    = "auto"
)

// ContentField identifies one of the translatable product text fields.
type ContentField string

// Translatable product content fields.
const (
	FieldTitle       ContentField = "title"
	FieldFulltitle   ContentField = "fulltitle"
	FieldDescription ContentField = "description"
	FieldContent     ContentField = "content"
)

// ContentFields lists every translatable field in a stable order.
func ContentFields() []ContentField {
	return []ContentField{FieldTitle, FieldFulltitle, FieldDescription, FieldContent}
}

// Language is one language configured for a shop.
type Language struct {
	Code      string `json:"code"`
	IsDefault bool   `json:"is_default"`
	IsActive  bool   `json:"is_active"`
}

// Shop is one connected webshop, identified by its TLD.
type Shop struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	TLD       string     `json:"tld"`
	BaseURL   string     `json:"base_url"`
	Languages []Language `json:"languages"`
}

// DefaultLanguage returns the shop's default language, if one is configured.
func (s Shop) DefaultLanguage() (Language, bool) {
	for _, l := range s.Languages {
		if l.IsDefault {
			return l, true
		}
	}
	return Language{}, false
}

// ActiveLanguages returns the shop's active languages, default first.
func (s Shop) ActiveLanguages() []Language {
	var out []Language
	for _, l := range s.Languages {
		if l.IsDefault && l.IsActive {
			out = append(out, l)
		}
	}
	for _, l := range s.Languages {
		if !l.IsDefault && l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

// ImageInfo is a product or variant image held by reference.
type ImageInfo struct {
	ID        int64  `json:"id,omitempty"`
	Src       string `json:"src"`
	Thumb     string `json:"thumb,omitempty"`
	Title     string `json:"title,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// ProductContent holds the translatable text fields of a product in one language.
type ProductContent struct {
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Fulltitle   string `json:"fulltitle,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Field returns the value of the named translatable field.
func (c ProductContent) Field(f ContentField) string {
	switch f {
	case FieldTitle:
		return c.Title
	case FieldFulltitle:
		return c.Fulltitle
	case FieldDescription:
		return c.Description
	case FieldContent:
		return c.Content
	}
	return ""
}

// SetField sets the value of the named translatable field.
func (c *ProductContent) SetField(f ContentField, v string) {
	switch f {
	case FieldTitle:
		c.Title = v
	case FieldFulltitle:
		c.Fulltitle = v
	case FieldDescription:
		c.Description = v
	case FieldContent:
		c.Content = v
	}
}

// IsEmpty reports whether all translatable fields are empty.
func (c ProductContent) IsEmpty() bool {
	return c.Title == "" && c.Fulltitle == "" && c.Description == "" && c.Content == ""
}

// Variant is one product variant as known by the shop API.
type Variant struct {
	ID              int64             `json:"id"`
	SKU             string            `json:"sku"`
	IsDefault       bool              `json:"is_default"`
	SortOrder       int               `json:"sort_order"`
	PriceExcl       float64           `json:"price_excl"`
	Image           *ImageInfo        `json:"image,omitempty"`
	TitleByLanguage map[string]string `json:"title_by_language,omitempty"`
}

// Title returns the variant title for a language.
func (v Variant) Title(lang string) string {
	if v.TitleByLanguage == nil {
		return ""
	}
	return v.TitleByLanguage[lang]
}

// ProductData is the full state of one product in one shop: per-language
// content, the variant list and the image list.
type ProductData struct {
	ID                int64                     `json:"id"`
	Visibility        string                    `json:"visibility"`
	Image             *ImageInfo                `json:"image,omitempty"`
	ContentByLanguage map[string]ProductContent `json:"content_by_language"`
	Variants          []Variant                 `json:"variants"`
	Images            []ImageInfo               `json:"images"`
	CreatedAt         time.Time                 `json:"created_at,omitempty"`
	UpdatedAt         time.Time                 `json:"updated_at,omitempty"`
}

// Content returns the product content for a language.
func (p ProductData) Content(lang string) ProductContent {
	if p.ContentByLanguage == nil {
		return ProductContent{}
	}
	return p.ContentByLanguage[lang]
}

// DefaultVariant returns the variant flagged as default, or the first one.
func (p ProductData) DefaultVariant() (Variant, bool) {
	for _, v := range p.Variants {
		if v.IsDefault {
			return v, true
		}
	}
	if len(p.Variants) > 0 {
		return p.Variants[0], true
	}
	return Variant{}, false
}

// SKU returns the SKU of the default variant.
func (p ProductData) SKU() string {
	v, ok := p.DefaultVariant()
	if !ok {
		return ""
	}
	return v.SKU
}

// ProductImage returns the designated product image, the first image by sort
// order if none is designated, or nil if the product has no images.
func (p ProductData) ProductImage() *ImageInfo {
	if p.Image != nil && p.Image.Src != "" {
		return p.Image
	}
	var best *ImageInfo
	for i := range p.Images {
		img := &p.Images[i]
		if best == nil || img.SortOrder < best.SortOrder {
			best = img
		}
	}
	return best
}
