// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package reconcile implements the product reconciliation engine: snapshot
// loading, translation orchestration, edit-state tracking and diff/payload
// building for multi-shop product synchronization.
package reconcile

import (
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// Batch is the outcome of splitting target languages into copy vs translate.
type Batch struct {
	// Items are the translation requests, one per non-empty field per
	// language that needs translating.
	Items []translate.Item

	// CopyLanguages are target languages equal to the source default
	// language; their content is copied verbatim, never translated.
	CopyLanguages []string
}

// PrepareTranslationBatch splits target languages into copy languages and
// translation items. A language equal to the source shop's default language
// generates no items; every other language generates exactly one item per
// non-empty translatable field.
func PrepareTranslationBatch(sourceContent model.ProductContent, sourceDefaultLang string, targetLanguages []string) Batch {
	var b Batch
	for _, lang := range targetLanguages {
		if lang == sourceDefaultLang {
			b.CopyLanguages = append(b.CopyLanguages, lang)
			continue
		}
		for _, field := range model.ContentFields() {
			text := sourceContent.Field(field)
			if text == "" {
				continue
			}
			b.Items = append(b.Items, translate.Item{
				SourceLang: sourceDefaultLang,
				TargetLang: lang,
				Field:      field,
				Text:       text,
			})
		}
	}
	return b
}

// DeduplicateItems collapses items with an identical translation key before
// the provider is called. The same source text is frequently requested for
// multiple target shops sharing a language. indexMap[i] holds the position
// in the unique slice that items[i] maps to.
func DeduplicateItems(items []translate.Item) (unique []translate.Item, indexMap []int) {
	indexMap = make([]int, len(items))
	seen := make(map[string]int)
	for i, item := range items {
		key := item.Key()
		if idx, ok := seen[key]; ok {
			indexMap[i] = idx
			continue
		}
		seen[key] = len(unique)
		indexMap[i] = len(unique)
		unique = append(unique, item)
	}
	return unique, indexMap
}

// ReconstructResults expands deduplicated results back to the original
// order and multiplicity, so the i-th result corresponds to the i-th input
// item of DeduplicateItems.
func ReconstructResults(results []string, indexMap []int) []string {
	out := make([]string, len(indexMap))
	for i, idx := range indexMap {
		if idx >= 0 && idx < len(results) {
			out[i] = results[idx]
		}
	}
	return out
}
