// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package reconcile

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/olegiv/shopsync-go/internal/model"
)

// VariantState tags a variant under edit so downstream diff code handles
// every case exhaustively instead of relying on flag combinations.
type VariantState string

const (
	// VariantStateActive is a variant that existed on the target at load.
	VariantStateActive VariantState = "active"
	// VariantStateDeleted is soft-deleted: retained in the list for
	// restore, excluded from payloads.
	VariantStateDeleted VariantState = "deleted"
	// VariantStateAddedFromSource is a variant added in this session,
	// identified by temp id, not yet persisted.
	VariantStateAddedFromSource VariantState = "added_from_source"
)

// EditableVariant is one variant under edit. VariantID and TempID are
// mutually exclusive: a temp id means the variant is not yet persisted.
// The Original* fields are shadow copies of the pre-edit values, used for
// diffing and reset only, never mutated after load.
type EditableVariant struct {
	VariantID int64
	TempID    string
	State     VariantState

	SKU             string
	IsDefault       bool
	SortOrder       int
	PriceExcl       float64
	Image           *model.ImageInfo
	TitleByLanguage map[string]string

	OriginalSKU       string
	OriginalIsDefault bool
	OriginalSortOrder int
	OriginalPrice     float64
	OriginalImage     *model.ImageInfo
	OriginalTitles    map[string]string
}

// Key returns the stable identity of a variant within the edit buffer.
func (v *EditableVariant) Key() string {
	if v.TempID != "" {
		return "tmp:" + v.TempID
	}
	return strconv.FormatInt(v.VariantID, 10)
}

// modified reports whether any editable attribute differs from its shadow copy.
func (v *EditableVariant) modified() bool {
	if v.SKU != v.OriginalSKU ||
		v.PriceExcl != v.OriginalPrice ||
		v.IsDefault != v.OriginalIsDefault ||
		!imageRefEqual(v.Image, v.OriginalImage) {
		return true
	}
	for lang, title := range v.TitleByLanguage {
		if title != v.OriginalTitles[lang] {
			return true
		}
	}
	for lang, title := range v.OriginalTitles {
		if _, ok := v.TitleByLanguage[lang]; !ok && title != "" {
			return true
		}
	}
	return false
}

// EditableTargetData is the edit buffer for one target shop. All edits are
// buffered in memory until an explicit save; the buffer becomes the new
// original only on the next reload, never from the save response.
type EditableTargetData struct {
	ShopID    int64
	ShopTLD   string
	Languages []model.Language

	// ProductID is the target product id when editing an existing
	// product, 0 in create mode.
	ProductID int64

	Content      map[string]model.ProductContent
	Variants     []*EditableVariant
	Images       []model.ImageInfo
	Visibility   string
	ProductImage *model.ImageInfo

	// Tombstones for removed images. Removal is never physical so the
	// operator can restore without refetching.
	RemovedImageIDs  map[int64]bool
	RemovedImageSrcs map[string]bool

	// Meta tracks translation provenance per language and field.
	Meta model.TranslationMeta

	// Baselines recorded at load or re-translate time. Reset restores
	// from these; re-translate redefines them.
	OriginalContent      map[string]model.ProductContent
	OriginalMeta         model.TranslationMeta
	OriginalVisibility   string
	OriginalProductImage *model.ImageInfo
	OriginalImageOrder   []string
	OriginalVariantOrder []string

	// Derived bookkeeping, recomputed by computeDirty after every
	// transition.
	Dirty             bool
	DirtyFields       map[string]bool
	DirtyVariants     map[string]bool
	OrderChanged      bool
	ImageOrderChanged bool

	// baselineSettled absorbs the rich-text editor's mount normalization:
	// the first description/content change per language adopts the value
	// as baseline instead of marking the field dirty.
	baselineSettled map[string]bool

	// baselineVariantKeys identifies variants that were part of the
	// snapshot. Variants outside this set are session adds and always
	// count as dirty; in create mode the source-seeded variants are in
	// the set, so an untouched create buffer is clean.
	baselineVariantKeys map[string]bool
}

func imageRefEqual(a, b *model.ImageInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Src == b.Src
}

func cloneImage(img *model.ImageInfo) *model.ImageInfo {
	if img == nil {
		return nil
	}
	cp := *img
	return &cp
}

func cloneContentMap(m map[string]model.ProductContent) map[string]model.ProductContent {
	out := make(map[string]model.ProductContent, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTitleMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// settleBaselines records the current content, meta, variant, order and
// image state as the pre-edit baseline. Called once after snapshot
// construction.
func (d *EditableTargetData) settleBaselines() {
	d.OriginalContent = cloneContentMap(d.Content)
	d.OriginalMeta = d.Meta.Clone()
	d.OriginalVisibility = d.Visibility
	d.OriginalProductImage = cloneImage(d.ProductImage)

	d.baselineVariantKeys = make(map[string]bool, len(d.Variants))
	for _, v := range d.Variants {
		v.OriginalSKU = v.SKU
		v.OriginalIsDefault = v.IsDefault
		v.OriginalSortOrder = v.SortOrder
		v.OriginalPrice = v.PriceExcl
		v.OriginalImage = cloneImage(v.Image)
		v.OriginalTitles = cloneTitleMap(v.TitleByLanguage)
		d.baselineVariantKeys[v.Key()] = true
	}

	d.OriginalImageOrder = d.imageSrcOrder()
	d.OriginalVariantOrder = d.baselineVariantOrder()

	d.RemovedImageIDs = make(map[int64]bool)
	d.RemovedImageSrcs = make(map[string]bool)
	d.DirtyFields = make(map[string]bool)
	d.DirtyVariants = make(map[string]bool)
	d.baselineSettled = make(map[string]bool)
	d.Dirty = false
	d.OrderChanged = false
	d.ImageOrderChanged = false
}

// baselineVariantOrder returns the keys of baseline variants in list order.
func (d *EditableTargetData) baselineVariantOrder() []string {
	var out []string
	for _, v := range d.Variants {
		if d.baselineVariantKeys[v.Key()] {
			out = append(out, v.Key())
		}
	}
	return out
}

// imageSrcOrder returns image srcs ordered by sort_order.
func (d *EditableTargetData) imageSrcOrder() []string {
	sorted := sortedImages(d.Images)
	out := make([]string, len(sorted))
	for i, img := range sorted {
		out[i] = img.Src
	}
	return out
}

// computeDirty derives every dirty marker from the current state against
// the baselines. It is the single place the aggregate flag is computed:
// mutators never set Dirty directly, which would create false positives
// that block "no changes" short-circuiting on save.
func (d *EditableTargetData) computeDirty() {
	d.DirtyFields = make(map[string]bool)
	for _, lang := range d.Languages {
		cur := d.Content[lang.Code]
		base := d.OriginalContent[lang.Code]
		for _, field := range model.ContentFields() {
			if cur.Field(field) != base.Field(field) {
				d.DirtyFields[lang.Code+"."+string(field)] = true
			}
		}
	}

	d.DirtyVariants = make(map[string]bool)
	for _, v := range d.Variants {
		switch {
		case v.State == VariantStateDeleted:
			d.DirtyVariants[v.Key()] = true
		case !d.baselineVariantKeys[v.Key()]:
			d.DirtyVariants[v.Key()] = true
		case v.modified():
			d.DirtyVariants[v.Key()] = true
		}
	}

	d.OrderChanged = !equalStrings(d.baselineVariantOrder(), d.OriginalVariantOrder)
	d.ImageOrderChanged = !equalStrings(d.imageSrcOrder(), d.OriginalImageOrder)

	d.Dirty = len(d.DirtyFields) > 0 ||
		len(d.DirtyVariants) > 0 ||
		len(d.RemovedImageIDs) > 0 ||
		len(d.RemovedImageSrcs) > 0 ||
		d.Visibility != d.OriginalVisibility ||
		!imageRefEqual(d.ProductImage, d.OriginalProductImage) ||
		d.OrderChanged ||
		d.ImageOrderChanged
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- content transitions ---

// UpdateField applies an operator edit to one content field. Dirtiness is
// decided against the origin baseline, not a mutable current value. The
// very first description/content change per language settles the baseline
// instead of dirtying the field.
func (d *EditableTargetData) UpdateField(lang string, field model.ContentField, value string) {
	c := d.Content[lang]

	if (field == model.FieldDescription || field == model.FieldContent) && !d.baselineSettled[lang] {
		base := d.OriginalContent[lang]
		base.SetField(field, value)
		d.OriginalContent[lang] = base
		c.SetField(field, value)
		d.Content[lang] = c
		d.baselineSettled[lang] = true
		d.computeDirty()
		return
	}

	c.SetField(field, value)
	d.Content[lang] = c

	if value != d.OriginalContent[lang].Field(field) {
		d.Meta.Set(lang, field, model.OriginManual)
	} else {
		// The operator typed the field back to its baseline value:
		// provenance reverts to the recorded origin.
		d.Meta.Set(lang, field, d.OriginalMeta.Origin(lang, field))
	}
	d.computeDirty()
}

// ResetField restores one field's value and origin from the baseline.
func (d *EditableTargetData) ResetField(lang string, field model.ContentField) {
	c := d.Content[lang]
	c.SetField(field, d.OriginalContent[lang].Field(field))
	d.Content[lang] = c
	d.Meta.Set(lang, field, d.OriginalMeta.Origin(lang, field))
	d.computeDirty()
}

// ResetLanguage restores all fields of one language from the baseline.
func (d *EditableTargetData) ResetLanguage(lang string) {
	d.Content[lang] = d.OriginalContent[lang]
	for _, field := range model.ContentFields() {
		d.Meta.Set(lang, field, d.OriginalMeta.Origin(lang, field))
	}
	d.computeDirty()
}

// ResetShop restores the content of every language from the baseline.
func (d *EditableTargetData) ResetShop() {
	for _, lang := range d.Languages {
		d.Content[lang.Code] = d.OriginalContent[lang.Code]
		for _, field := range model.ContentFields() {
			d.Meta.Set(lang.Code, field, d.OriginalMeta.Origin(lang.Code, field))
		}
	}
	d.computeDirty()
}

// SetRetranslated applies a fresh translation result. Unlike reset,
// re-translation redefines the baseline: the new value becomes what future
// edits are compared against and what reset restores.
func (d *EditableTargetData) SetRetranslated(lang string, field model.ContentField, value string) {
	c := d.Content[lang]
	c.SetField(field, value)
	d.Content[lang] = c

	base := d.OriginalContent[lang]
	base.SetField(field, value)
	d.OriginalContent[lang] = base

	d.Meta.Set(lang, field, model.OriginTranslated)
	d.OriginalMeta.Set(lang, field, model.OriginTranslated)
	d.computeDirty()
}

// --- variant transitions ---

func (d *EditableTargetData) findVariant(key string) *EditableVariant {
	for _, v := range d.Variants {
		if v.Key() == key {
			return v
		}
	}
	return nil
}

// UpdateVariant edits a variant's sku and/or price. Nil means unchanged.
func (d *EditableTargetData) UpdateVariant(key string, sku *string, price *float64) {
	v := d.findVariant(key)
	if v == nil {
		return
	}
	if sku != nil {
		v.SKU = *sku
	}
	if price != nil {
		v.PriceExcl = *price
	}
	d.computeDirty()
}

// UpdateVariantTitle edits a variant's title in one language.
func (d *EditableTargetData) UpdateVariantTitle(key, lang, title string) {
	v := d.findVariant(key)
	if v == nil {
		return
	}
	if v.TitleByLanguage == nil {
		v.TitleByLanguage = make(map[string]string)
	}
	v.TitleByLanguage[lang] = title
	d.computeDirty()
}

// AddVariant appends a blank variant with a synthetic temp id.
func (d *EditableTargetData) AddVariant() *EditableVariant {
	v := &EditableVariant{
		TempID:          uuid.NewString(),
		State:           VariantStateAddedFromSource,
		SortOrder:       len(d.Variants) + 1,
		TitleByLanguage: make(map[string]string),
		OriginalTitles:  make(map[string]string),
	}
	d.Variants = append(d.Variants, v)
	d.computeDirty()
	return v
}

// AddVariantsFromSource copies the source product's variants into the edit
// buffer as unpersisted variants. Titles are seeded from the source
// default-language title into every target language uniformly.
func (d *EditableTargetData) AddVariantsFromSource(source []model.Variant, sourceDefaultLang string) {
	for _, sv := range source {
		titles := make(map[string]string, len(d.Languages))
		seed := sv.Title(sourceDefaultLang)
		for _, lang := range d.Languages {
			titles[lang.Code] = seed
		}
		v := &EditableVariant{
			TempID:          uuid.NewString(),
			State:           VariantStateAddedFromSource,
			SKU:             sv.SKU,
			IsDefault:       sv.IsDefault,
			SortOrder:       len(d.Variants) + 1,
			PriceExcl:       sv.PriceExcl,
			Image:           cloneImage(sv.Image),
			TitleByLanguage: titles,
			OriginalTitles:  make(map[string]string),
		}
		d.Variants = append(d.Variants, v)
	}
	d.computeDirty()
}

// RemoveVariant removes a variant: soft-delete for baseline variants so
// the operator can restore them, hard removal in create mode and for
// session adds that never existed in the snapshot.
func (d *EditableTargetData) RemoveVariant(key string, createMode bool) {
	v := d.findVariant(key)
	if v == nil {
		return
	}
	if createMode || !d.baselineVariantKeys[key] {
		out := d.Variants[:0]
		for _, cur := range d.Variants {
			if cur.Key() != key {
				out = append(out, cur)
			}
		}
		d.Variants = out
		if d.baselineVariantKeys[key] {
			// Hard-removing a baseline variant (create mode) also
			// drops it from the order baseline.
			delete(d.baselineVariantKeys, key)
			order := d.OriginalVariantOrder[:0]
			for _, k := range d.OriginalVariantOrder {
				if k != key {
					order = append(order, k)
				}
			}
			d.OriginalVariantOrder = order
		}
	} else {
		v.State = VariantStateDeleted
	}
	d.computeDirty()
}

// RestoreVariant clears a variant's soft-delete tombstone.
func (d *EditableTargetData) RestoreVariant(key string) {
	v := d.findVariant(key)
	if v == nil || v.State != VariantStateDeleted {
		return
	}
	v.State = VariantStateActive
	d.computeDirty()
}

// MoveVariant moves a variant to a new position and reindexes sort_order
// for the whole list.
func (d *EditableTargetData) MoveVariant(key string, newIndex int) {
	oldIndex := -1
	for i, v := range d.Variants {
		if v.Key() == key {
			oldIndex = i
			break
		}
	}
	if oldIndex < 0 || newIndex < 0 || newIndex >= len(d.Variants) || oldIndex == newIndex {
		return
	}

	v := d.Variants[oldIndex]
	rest := append(d.Variants[:oldIndex:oldIndex], d.Variants[oldIndex+1:]...)
	d.Variants = append(rest[:newIndex:newIndex], append([]*EditableVariant{v}, rest[newIndex:]...)...)

	for i, cur := range d.Variants {
		cur.SortOrder = i + 1
	}
	d.computeDirty()
}

// SetDefaultVariant flips the default flag to the given variant.
func (d *EditableTargetData) SetDefaultVariant(key string) {
	if d.findVariant(key) == nil {
		return
	}
	for _, v := range d.Variants {
		v.IsDefault = v.Key() == key
	}
	d.computeDirty()
}

// RestoreDefaultVariant restores every variant's default flag to its
// pre-edit value.
func (d *EditableTargetData) RestoreDefaultVariant() {
	for _, v := range d.Variants {
		v.IsDefault = v.OriginalIsDefault
	}
	d.computeDirty()
}

// ResetVariant restores one variant from its shadow copies. Resetting a
// variant added in this session removes it.
func (d *EditableTargetData) ResetVariant(key string) {
	v := d.findVariant(key)
	if v == nil {
		return
	}
	if !d.baselineVariantKeys[key] {
		d.RemoveVariant(key, true)
		return
	}
	v.SKU = v.OriginalSKU
	v.PriceExcl = v.OriginalPrice
	v.IsDefault = v.OriginalIsDefault
	v.Image = cloneImage(v.OriginalImage)
	v.TitleByLanguage = cloneTitleMap(v.OriginalTitles)
	v.State = VariantStateActive
	d.computeDirty()
}

// ResetAllVariants restores every baseline variant, drops session adds
// and restores the original order.
func (d *EditableTargetData) ResetAllVariants() {
	kept := make([]*EditableVariant, 0, len(d.Variants))
	for _, v := range d.Variants {
		if !d.baselineVariantKeys[v.Key()] {
			continue
		}
		v.SKU = v.OriginalSKU
		v.PriceExcl = v.OriginalPrice
		v.IsDefault = v.OriginalIsDefault
		v.Image = cloneImage(v.OriginalImage)
		v.TitleByLanguage = cloneTitleMap(v.OriginalTitles)
		v.SortOrder = v.OriginalSortOrder
		v.State = VariantStateActive
		kept = append(kept, v)
	}
	// Restore original list order.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].OriginalSortOrder < kept[j].OriginalSortOrder
	})
	d.Variants = kept
	d.computeDirty()
}

// --- image transitions ---

// SelectVariantImage assigns an image (by reference) to a variant, or
// clears it when img is nil.
func (d *EditableTargetData) SelectVariantImage(key string, img *model.ImageInfo) {
	v := d.findVariant(key)
	if v == nil {
		return
	}
	v.Image = cloneImage(img)
	d.computeDirty()
}

// SelectProductImage designates an image as the product image. Selecting a
// non-primary image swaps its sort_order with the current primary's so the
// display grid stays consistent. A no-op with one image or fewer.
func (d *EditableTargetData) SelectProductImage(src string) {
	if len(d.Images) <= 1 {
		return
	}

	selected := -1
	for i := range d.Images {
		if d.Images[i].Src == src {
			selected = i
			break
		}
	}
	if selected < 0 {
		return
	}

	// Current primary: the designated product image if it is in the list,
	// else the image with the lowest sort_order.
	primary := -1
	if d.ProductImage != nil {
		for i := range d.Images {
			if d.Images[i].Src == d.ProductImage.Src {
				primary = i
				break
			}
		}
	}
	if primary < 0 {
		for i := range d.Images {
			if primary < 0 || d.Images[i].SortOrder < d.Images[primary].SortOrder {
				primary = i
			}
		}
	}

	if primary >= 0 && primary != selected {
		d.Images[selected].SortOrder, d.Images[primary].SortOrder =
			d.Images[primary].SortOrder, d.Images[selected].SortOrder
	}
	d.ProductImage = cloneImage(&d.Images[selected])
	d.computeDirty()
}

// ResetProductImage restores the designated product image from the baseline.
func (d *EditableTargetData) ResetProductImage() {
	cur := d.ProductImage
	base := d.OriginalProductImage
	if cur != nil && base != nil && cur.Src != base.Src {
		// Undo the sort_order swap SelectProductImage performed.
		var curIdx, baseIdx = -1, -1
		for i := range d.Images {
			if d.Images[i].Src == cur.Src {
				curIdx = i
			}
			if d.Images[i].Src == base.Src {
				baseIdx = i
			}
		}
		if curIdx >= 0 && baseIdx >= 0 {
			d.Images[curIdx].SortOrder, d.Images[baseIdx].SortOrder =
				d.Images[baseIdx].SortOrder, d.Images[curIdx].SortOrder
		}
	}
	d.ProductImage = cloneImage(base)
	d.computeDirty()
}

// RemoveImage tombstones an image. The image stays in the list so the
// operator can restore it without refetching.
func (d *EditableTargetData) RemoveImage(img model.ImageInfo) {
	if img.ID != 0 {
		d.RemovedImageIDs[img.ID] = true
	} else if img.Src != "" {
		d.RemovedImageSrcs[img.Src] = true
	}
	d.computeDirty()
}

// RestoreImage clears an image tombstone.
func (d *EditableTargetData) RestoreImage(img model.ImageInfo) {
	delete(d.RemovedImageIDs, img.ID)
	delete(d.RemovedImageSrcs, img.Src)
	d.computeDirty()
}

// imageRemoved reports whether an image is tombstoned.
func (d *EditableTargetData) imageRemoved(img model.ImageInfo) bool {
	if img.ID != 0 && d.RemovedImageIDs[img.ID] {
		return true
	}
	return img.Src != "" && d.RemovedImageSrcs[img.Src]
}

// MoveImage moves an image to a new position in sort order and reindexes
// sort_order for the whole list.
func (d *EditableTargetData) MoveImage(src string, newIndex int) {
	sorted := sortedImages(d.Images)
	oldIndex := -1
	for i, img := range sorted {
		if img.Src == src {
			oldIndex = i
			break
		}
	}
	if oldIndex < 0 || newIndex < 0 || newIndex >= len(sorted) || oldIndex == newIndex {
		return
	}

	moved := sorted[oldIndex]
	rest := append(sorted[:oldIndex:oldIndex], sorted[oldIndex+1:]...)
	sorted = append(rest[:newIndex:newIndex], append([]model.ImageInfo{moved}, rest[newIndex:]...)...)

	orderBySrc := make(map[string]int, len(sorted))
	for i, img := range sorted {
		orderBySrc[img.Src] = i + 1
	}
	for i := range d.Images {
		if o, ok := orderBySrc[d.Images[i].Src]; ok {
			d.Images[i].SortOrder = o
		}
	}
	d.computeDirty()
}

// ResetImageOrder restores every image's sort_order from the baseline.
func (d *EditableTargetData) ResetImageOrder() {
	for i, src := range d.OriginalImageOrder {
		for j := range d.Images {
			if d.Images[j].Src == src {
				d.Images[j].SortOrder = i + 1
			}
		}
	}
	d.computeDirty()
}

// --- visibility transitions ---

// UpdateVisibility sets the product visibility.
func (d *EditableTargetData) UpdateVisibility(v string) {
	d.Visibility = v
	d.computeDirty()
}

// ResetVisibility restores the product visibility from the baseline.
func (d *EditableTargetData) ResetVisibility() {
	d.Visibility = d.OriginalVisibility
	d.computeDirty()
}

// sortedImages returns a copy of images ordered by sort_order.
func sortedImages(images []model.ImageInfo) []model.ImageInfo {
	out := make([]model.ImageInfo, len(images))
	copy(out, images)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}
