// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// NewEditableFromSource builds the create-mode edit buffer for one target
// shop from a source product. Copy languages are filled verbatim with
// origin copied; translate languages stay empty until translation results
// are applied, so callers must settle baselines afterwards (LoadSnapshots
// does this).
func NewEditableFromSource(source *model.ProductData, sourceDefaultLang string, shop model.Shop) *EditableTargetData {
	d := &EditableTargetData{
		ShopID:     shop.ID,
		ShopTLD:    shop.TLD,
		Languages:  shop.ActiveLanguages(),
		Content:    make(map[string]model.ProductContent),
		Meta:       make(model.TranslationMeta),
		Visibility: source.Visibility,
	}

	sourceContent := source.Content(sourceDefaultLang)
	for _, lang := range d.Languages {
		if lang.Code == sourceDefaultLang {
			d.Content[lang.Code] = sourceContent
			for _, field := range model.ContentFields() {
				d.Meta.Set(lang.Code, field, model.OriginCopied)
			}
		} else {
			d.Content[lang.Code] = model.ProductContent{}
		}
	}

	// Variants are copies of the source's: all unpersisted, titles seeded
	// from the source default-language title into every target language.
	for i, sv := range source.Variants {
		titles := make(map[string]string, len(d.Languages))
		seed := sv.Title(sourceDefaultLang)
		for _, lang := range d.Languages {
			titles[lang.Code] = seed
		}
		d.Variants = append(d.Variants, &EditableVariant{
			TempID:          uuid.NewString(),
			State:           VariantStateAddedFromSource,
			SKU:             sv.SKU,
			IsDefault:       sv.IsDefault,
			SortOrder:       i + 1,
			PriceExcl:       sv.PriceExcl,
			Image:           cloneImage(sv.Image),
			TitleByLanguage: titles,
			OriginalTitles:  make(map[string]string),
		})
	}

	// Images are shared by reference across target shops, sort_order
	// preserved.
	d.Images = make([]model.ImageInfo, len(source.Images))
	copy(d.Images, source.Images)
	d.ProductImage = cloneImage(source.ProductImage())

	return d
}

// NewEditableFromProduct builds the edit-mode buffer from an existing
// target product. The product's current remote state is the baseline;
// provenance defaults to manual.
func NewEditableFromProduct(product *model.ProductData, shop model.Shop) *EditableTargetData {
	d := &EditableTargetData{
		ShopID:     shop.ID,
		ShopTLD:    shop.TLD,
		Languages:  shop.ActiveLanguages(),
		ProductID:  product.ID,
		Content:    make(map[string]model.ProductContent),
		Meta:       make(model.TranslationMeta),
		Visibility: product.Visibility,
	}

	for _, lang := range d.Languages {
		d.Content[lang.Code] = product.Content(lang.Code)
	}

	for i, pv := range product.Variants {
		sortOrder := pv.SortOrder
		if sortOrder == 0 {
			sortOrder = i + 1
		}
		d.Variants = append(d.Variants, &EditableVariant{
			VariantID:         pv.ID,
			State:             VariantStateActive,
			SKU:               pv.SKU,
			IsDefault:         pv.IsDefault,
			SortOrder:         sortOrder,
			PriceExcl:         pv.PriceExcl,
			Image:             cloneImage(pv.Image),
			TitleByLanguage:   cloneTitleMap(pv.TitleByLanguage),
			OriginalSKU:       pv.SKU,
			OriginalIsDefault: pv.IsDefault,
			OriginalSortOrder: sortOrder,
			OriginalPrice:     pv.PriceExcl,
			OriginalImage:     cloneImage(pv.Image),
			OriginalTitles:    cloneTitleMap(pv.TitleByLanguage),
		})
	}

	d.Images = make([]model.ImageInfo, len(product.Images))
	copy(d.Images, product.Images)
	d.ProductImage = cloneImage(product.ProductImage())

	d.settleBaselines()
	return d
}

// pendingRef remembers which buffer slot a translation item fills.
type pendingRef struct {
	shopTLD string
	lang    string
	field   model.ContentField
}

// LoadSnapshots builds create-mode edit buffers for all target shops from
// one source product, issuing at most one batched translation call for the
// whole fan-out. A translation failure is scoped: shops that needed
// translations are reported in the error map and left un-initialized
// rather than partially filled, while copy-only shops still initialize.
func LoadSnapshots(ctx context.Context, session *Session, source *model.ProductData, sourceDefaultLang string, shops []model.Shop) (map[string]*EditableTargetData, map[string]error) {
	targets := make(map[string]*EditableTargetData, len(shops))
	errs := make(map[string]error)

	sourceContent := source.Content(sourceDefaultLang)

	var items []translate.Item
	var refs []pendingRef

	for _, shop := range shops {
		d := NewEditableFromSource(source, sourceDefaultLang, shop)
		targets[shop.TLD] = d

		codes := make([]string, 0, len(d.Languages))
		for _, lang := range d.Languages {
			codes = append(codes, lang.Code)
		}
		batch := PrepareTranslationBatch(sourceContent, sourceDefaultLang, codes)
		for _, item := range batch.Items {
			refs = append(refs, pendingRef{shopTLD: shop.TLD, lang: item.TargetLang, field: item.Field})
		}
		items = append(items, batch.Items...)
	}

	if len(items) > 0 {
		results, err := session.Translate(ctx, items)
		if err != nil {
			affected := make(map[string]bool)
			for _, ref := range refs {
				affected[ref.shopTLD] = true
			}
			for tld := range affected {
				errs[tld] = err
				delete(targets, tld)
			}
		} else {
			for i, ref := range refs {
				d := targets[ref.shopTLD]
				c := d.Content[ref.lang]
				c.SetField(ref.field, results[i])
				d.Content[ref.lang] = c
				d.Meta.Set(ref.lang, ref.field, model.OriginTranslated)
			}
		}
	}

	for _, d := range targets {
		d.settleBaselines()
	}
	return targets, errs
}

// RetranslateField forces a fresh translation of one field, bypassing the
// session memo, and applies the result as the new baseline.
func RetranslateField(ctx context.Context, session *Session, d *EditableTargetData, sourceContent model.ProductContent, sourceLang, targetLang string, field model.ContentField) error {
	text := sourceContent.Field(field)
	if text == "" {
		d.SetRetranslated(targetLang, field, "")
		return nil
	}
	results, err := session.Retranslate(ctx, []translate.Item{{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Field:      field,
		Text:       text,
	}})
	if err != nil {
		return err
	}
	d.SetRetranslated(targetLang, field, results[0])
	return nil
}

// RetranslateLanguage forces fresh translations for every non-empty field
// of one language and applies them as the new baseline.
func RetranslateLanguage(ctx context.Context, session *Session, d *EditableTargetData, sourceContent model.ProductContent, sourceLang, targetLang string) error {
	var items []translate.Item
	for _, field := range model.ContentFields() {
		text := sourceContent.Field(field)
		if text == "" {
			continue
		}
		items = append(items, translate.Item{
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Field:      field,
			Text:       text,
		})
	}
	results, err := session.Retranslate(ctx, items)
	if err != nil {
		return err
	}
	for i, item := range items {
		d.SetRetranslated(targetLang, item.Field, results[i])
	}
	return nil
}
