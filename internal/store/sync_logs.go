// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
)

// CreateSyncLog opens a sync run for a shop and returns its id.
func (q *Queries) CreateSyncLog(ctx context.Context, shopID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO sync_logs (shop_id, status, started_at) VALUES (?, ?, ?)`,
		shopID, model.SyncStatusRunning, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CompleteSyncLogParams holds the final state of a sync run.
type CompleteSyncLogParams struct {
	ID           int64
	Status       string
	Metrics      model.SyncMetrics
	ErrorMessage string
}

// CompleteSyncLog records the outcome and metrics of a sync run.
func (q *Queries) CompleteSyncLog(ctx context.Context, arg CompleteSyncLogParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE sync_logs SET
		   status = ?,
		   products_fetched = ?, variants_fetched = ?,
		   products_synced = ?, variants_synced = ?,
		   products_deleted = ?, variants_deleted = ?,
		   variants_filtered = ?,
		   error_message = ?,
		   completed_at = ?
		 WHERE id = ?`,
		arg.Status,
		arg.Metrics.ProductsFetched, arg.Metrics.VariantsFetched,
		arg.Metrics.ProductsSynced, arg.Metrics.VariantsSynced,
		arg.Metrics.ProductsDeleted, arg.Metrics.VariantsDeleted,
		arg.Metrics.VariantsFiltered,
		nullIfEmpty(arg.ErrorMessage),
		time.Now(),
		arg.ID,
	)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListSyncLogs returns the most recent sync runs, newest first.
func (q *Queries) ListSyncLogs(ctx context.Context, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, shop_id, status,
		   products_fetched, variants_fetched,
		   products_synced, variants_synced,
		   products_deleted, variants_deleted, variants_filtered,
		   error_message, started_at, completed_at
		 FROM sync_logs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var logs []model.SyncLog
	for rows.Next() {
		var l model.SyncLog
		if err := rows.Scan(
			&l.ID, &l.ShopID, &l.Status,
			&l.Metrics.ProductsFetched, &l.Metrics.VariantsFetched,
			&l.Metrics.ProductsSynced, &l.Metrics.VariantsSynced,
			&l.Metrics.ProductsDeleted, &l.Metrics.VariantsDeleted, &l.Metrics.VariantsFiltered,
			&l.ErrorMessage, &l.StartedAt, &l.CompletedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
