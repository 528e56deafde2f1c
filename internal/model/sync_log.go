// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Sync run statuses.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncMetrics counts the work done by one catalog sync run.
type SyncMetrics struct {
	ProductsFetched  int `json:"products_fetched"`
	VariantsFetched  int `json:"variants_fetched"`
	ProductsSynced   int `json:"products_synced"`
	VariantsSynced   int `json:"variants_synced"`
	ProductsDeleted  int `json:"products_deleted"`
	VariantsDeleted  int `json:"variants_deleted"`
	VariantsFiltered int `json:"variants_filtered"`
}

// SyncLog records one catalog sync run for one shop.
type SyncLog struct {
	ID           int64          `json:"id"`
	ShopID       int64          `json:"shop_id"`
	Status       string         `json:"status"`
	Metrics      SyncMetrics    `json:"metrics"`
	ErrorMessage sql.NullString `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  sql.NullTime   `json:"completed_at,omitempty"`
}
