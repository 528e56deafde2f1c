// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// TranslationOrigin records how a field's current value came to be.
type TranslationOrigin string

// Translation provenance values, tracked per (shop, language, field).
const (
	// OriginCopied means the value was copied verbatim from the source
	// shop's default language.
	OriginCopied TranslationOrigin = "copied"
	// OriginTranslated means the value came back from the translation
	// provider.
	OriginTranslated TranslationOrigin = "translated"
	// OriginManual means the operator edited the value away from its
	// origin-determined baseline. A field only leaves manual through an
	// explicit reset or re-translate action, never implicitly.
	OriginManual TranslationOrigin = "manual"
)

// TranslationMeta maps language code to per-field origin for one target shop.
type TranslationMeta map[string]map[ContentField]TranslationOrigin

// Origin returns the recorded origin for a language/field, defaulting to
// manual when nothing was recorded.
func (m TranslationMeta) Origin(lang string, field ContentField) TranslationOrigin {
	if byField, ok := m[lang]; ok {
		if o, ok := byField[field]; ok {
			return o
		}
	}
	return OriginManual
}

// Set records the origin for a language/field.
func (m TranslationMeta) Set(lang string, field ContentField, o TranslationOrigin) {
	if m[lang] == nil {
		m[lang] = make(map[ContentField]TranslationOrigin)
	}
	m[lang][field] = o
}

// Clone returns a deep copy so snapshots stay immutable.
func (m TranslationMeta) Clone() TranslationMeta {
	out := make(TranslationMeta, len(m))
	for lang, byField := range m {
		cp := make(map[ContentField]TranslationOrigin, len(byField))
		for f, o := range byField {
			cp[f] = o
		}
		out[lang] = cp
	}
	return out
}
