// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "github.com/microcosm-cc/bluemonday"

// contentPolicy sanitizes rich-text product fields before they are sent to
// the shop API. UGC policy: formatting and links survive, scripts do not.
var contentPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips unsafe markup from a rich-text field value.
func SanitizeHTML(s string) string {
	if s == "" {
		return ""
	}
	return contentPolicy.Sanitize(s)
}

// Sanitize returns a copy of the content with the rich-text fields
// (description, content) run through the HTML policy. Title fields are plain
// text and pass through unchanged.
func (c ProductContent) Sanitize() ProductContent {
	c.Description = SanitizeHTML(c.Description)
	c.Content = SanitizeHTML(c.Content)
	return c
}
