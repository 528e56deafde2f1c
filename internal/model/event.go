// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategorySync      = "sync"
	EventCategoryProduct   = "product"
	EventCategoryTranslate = "translate"
	EventCategoryCache     = "cache"
	EventCategorySystem    = "system"
	EventCategoryAPI       = "api"
)

// Event represents an operation log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	ShopID    int64 // 0 when the event is not shop-scoped
	Metadata  string // JSON string
	CreatedAt time.Time
}
