// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olegiv/shopsync-go/internal/model"
)

// VariantPayload is the wire form of one variant in a create/update
// request. VariantID identifies persisted variants; TempID marks creates.
type VariantPayload struct {
	VariantID       int64             `json:"variant_id,omitempty"`
	TempID          string            `json:"temp_id,omitempty"`
	SKU             string            `json:"sku"`
	IsDefault       bool              `json:"is_default"`
	SortOrder       int               `json:"sort_order"`
	PriceExcl       float64           `json:"price_excl"`
	Image           *model.ImageInfo  `json:"image,omitempty"`
	TitleByLanguage map[string]string `json:"title_by_language,omitempty"`
}

// ProductPayload is the wire form of a product create/update request body.
type ProductPayload struct {
	Visibility        string                          `json:"visibility,omitempty"`
	ProductImage      *model.ImageInfo                `json:"product_image,omitempty"`
	ContentByLanguage map[string]model.ProductContent `json:"content_by_language"`
	Variants          []VariantPayload                `json:"variants"`
	Images            []model.ImageInfo               `json:"images"`
}

// buildPayload converts the edit buffer to wire form. Tombstoned variants
// and images are excluded; both lists are sorted by sort_order.
func buildPayload(d *EditableTargetData) ProductPayload {
	p := ProductPayload{
		Visibility:        d.Visibility,
		ProductImage:      cloneImage(d.ProductImage),
		ContentByLanguage: cloneContentMap(d.Content),
	}

	variants := make([]*EditableVariant, 0, len(d.Variants))
	for _, v := range d.Variants {
		if v.State == VariantStateDeleted {
			continue
		}
		variants = append(variants, v)
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, VariantPayload{
			VariantID:       v.VariantID,
			TempID:          v.TempID,
			SKU:             v.SKU,
			IsDefault:       v.IsDefault,
			SortOrder:       v.SortOrder,
			PriceExcl:       v.PriceExcl,
			Image:           cloneImage(v.Image),
			TitleByLanguage: cloneTitleMap(v.TitleByLanguage),
		})
	}
	sortVariantPayloads(p.Variants)

	for _, img := range sortedImages(d.Images) {
		if d.imageRemoved(img) {
			continue
		}
		p.Images = append(p.Images, img)
	}

	return p
}

func sortVariantPayloads(variants []VariantPayload) {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].SortOrder < variants[j].SortOrder
	})
}

// BuildUpdatePayload produces the wire payload for updating an existing
// target product.
func BuildUpdatePayload(d *EditableTargetData) ProductPayload {
	return buildPayload(d)
}

// BuildCreatePayload produces the wire payload for creating a product on a
// target shop. No variant carries a persisted id in create mode.
func BuildCreatePayload(d *EditableTargetData) ProductPayload {
	p := buildPayload(d)
	for i := range p.Variants {
		p.Variants[i].VariantID = 0
	}
	return p
}

// VariantOps is the concrete set of variant operations an update requires.
type VariantOps struct {
	Create []VariantPayload
	Update []VariantPayload
	Delete []int64
}

// Empty reports whether the op set carries no work.
func (o VariantOps) Empty() bool {
	return len(o.Create) == 0 && len(o.Update) == 0 && len(o.Delete) == 0
}

// DiffVariants reconciles the payload's variant list against the product's
// current variants. Identity is by variant_id when present; payload
// variants without one are creates; current variants absent from the
// payload are deletes; matched variants are updates only when a field
// actually differs.
func DiffVariants(payload []VariantPayload, current []model.Variant) VariantOps {
	var ops VariantOps

	currentByID := make(map[int64]model.Variant, len(current))
	for _, v := range current {
		currentByID[v.ID] = v
	}

	sent := make(map[int64]bool, len(payload))
	for _, p := range payload {
		if p.VariantID == 0 {
			ops.Create = append(ops.Create, p)
			continue
		}
		sent[p.VariantID] = true
		cur, ok := currentByID[p.VariantID]
		if !ok {
			// Persisted id unknown locally: treat as create so the
			// variant is not silently dropped.
			ops.Create = append(ops.Create, p)
			continue
		}
		if variantDiffers(p, cur) {
			ops.Update = append(ops.Update, p)
		}
	}

	for _, v := range current {
		if !sent[v.ID] {
			ops.Delete = append(ops.Delete, v.ID)
		}
	}
	return ops
}

func variantDiffers(p VariantPayload, cur model.Variant) bool {
	if p.SKU != cur.SKU ||
		p.IsDefault != cur.IsDefault ||
		p.PriceExcl != cur.PriceExcl ||
		p.SortOrder != cur.SortOrder {
		return true
	}
	if !imageRefEqual(p.Image, cur.Image) {
		return true
	}
	for lang, title := range p.TitleByLanguage {
		if title != cur.Title(lang) {
			return true
		}
	}
	return false
}

// ImageOps is the concrete set of image operations an update requires.
type ImageOps struct {
	// Create lists images to attach, by source URL.
	Create []model.ImageInfo
	// Delete lists remote image ids to remove.
	Delete []int64
	// Reorder maps remote image id to its new sort_order.
	Reorder map[int64]int
}

// Empty reports whether the op set carries no work.
func (o ImageOps) Empty() bool {
	return len(o.Create) == 0 && len(o.Delete) == 0 && len(o.Reorder) == 0
}

// DiffImages reconciles the desired image list against the current remote
// list. The remote list must be fetched fresh at update time, not taken
// from the stale in-memory snapshot, or server-side deletions and new
// images go undetected. Matching is by src.
func DiffImages(desired, remote []model.ImageInfo) ImageOps {
	ops := ImageOps{Reorder: make(map[int64]int)}

	remoteBySrc := make(map[string]model.ImageInfo, len(remote))
	for _, img := range remote {
		remoteBySrc[img.Src] = img
	}

	desiredSrc := make(map[string]bool, len(desired))
	for i, img := range desired {
		desiredSrc[img.Src] = true
		cur, ok := remoteBySrc[img.Src]
		if !ok {
			ops.Create = append(ops.Create, img)
			continue
		}
		wantOrder := i + 1
		if cur.SortOrder != wantOrder {
			ops.Reorder[cur.ID] = wantOrder
		}
	}

	for _, img := range remote {
		if !desiredSrc[img.Src] {
			ops.Delete = append(ops.Delete, img.ID)
		}
	}
	return ops
}

// DescribeChanges produces the human-readable change list for the
// operation log. Each entry appears only when the corresponding dirty
// condition holds. An empty list means the save was submitted without any
// tracked change, which the dirty-gate should have prevented; the fallback
// entry makes that visible instead of hiding it.
func DescribeChanges(d *EditableTargetData) []string {
	var changes []string

	if d.Visibility != d.OriginalVisibility {
		changes = append(changes, fmt.Sprintf("Visibility changed to %s", d.Visibility))
	}

	// Content changes grouped by field name, not per language.
	fieldChanged := make(map[model.ContentField]bool)
	for key := range d.DirtyFields {
		if _, field, ok := strings.Cut(key, "."); ok {
			fieldChanged[model.ContentField(field)] = true
		}
	}
	var changedFields []string
	for _, field := range model.ContentFields() {
		if fieldChanged[field] {
			changedFields = append(changedFields, string(field))
		}
	}
	if len(changedFields) > 0 {
		changes = append(changes, "Content updated: "+strings.Join(changedFields, ", "))
	}

	var added, removed, updated int
	for _, v := range d.Variants {
		switch {
		case v.State == VariantStateDeleted:
			removed++
		case !d.baselineVariantKeys[v.Key()]:
			added++
		case v.modified():
			updated++
		}
	}
	if added > 0 {
		changes = append(changes, fmt.Sprintf("%d variant(s) added", added))
	}
	if removed > 0 {
		changes = append(changes, fmt.Sprintf("%d variant(s) removed", removed))
	}
	if updated > 0 {
		changes = append(changes, fmt.Sprintf("%d variant(s) updated", updated))
	}
	if d.OrderChanged {
		changes = append(changes, "Variant order changed")
	}

	if !imageRefEqual(d.ProductImage, d.OriginalProductImage) {
		changes = append(changes, "Product image changed")
	}

	var imagesAdded int
	for _, img := range d.Images {
		if img.ID == 0 && !d.imageRemoved(img) {
			imagesAdded++
		}
	}
	imagesRemoved := len(d.RemovedImageIDs) + len(d.RemovedImageSrcs)
	if imagesAdded > 0 {
		changes = append(changes, fmt.Sprintf("%d image(s) added", imagesAdded))
	}
	if imagesRemoved > 0 {
		changes = append(changes, fmt.Sprintf("%d image(s) removed", imagesRemoved))
	}
	if d.ImageOrderChanged {
		changes = append(changes, "Image order changed")
	}

	if len(changes) == 0 {
		changes = []string{"No specific changes tracked"}
	}
	return changes
}
