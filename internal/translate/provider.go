// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package translate provides machine translation of product content
// between shop languages.
package translate

import (
	"context"

	"github.com/olegiv/shopsync-go/internal/model"
)

// Item is one field of one product in one language pair.
type Item struct {
	SourceLang string             `json:"sourceLang"`
	TargetLang string             `json:"targetLang"`
	Field      model.ContentField `json:"field"`
	Text       string             `json:"text"`
}

// Key returns the memoization key of an item. Two items with the same key
// must produce the same translation within a session.
func (i Item) Key() string {
	return i.SourceLang + ":" + i.TargetLang + ":" + string(i.Field) + ":" + i.Text
}

// Provider translates batches of content items.
// Implementations must return exactly one result per input item, in order.
type Provider interface {
	// TranslateBatch translates all items. Items with empty text map to
	// empty results without calling the backing service.
	TranslateBatch(ctx context.Context, items []Item) ([]string, error)

	// Name identifies the provider in logs.
	Name() string
}
