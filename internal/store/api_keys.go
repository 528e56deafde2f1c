// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
)

// CreateAPIKeyParams holds the fields for creating an API key.
type CreateAPIKeyParams struct {
	Name        string
	KeyHash     string
	KeyPrefix   string
	Permissions string
	ExpiresAt   *time.Time
}

// CreateAPIKey inserts a new API key record.
func (q *Queries) CreateAPIKey(ctx context.Context, arg CreateAPIKeyParams) (int64, error) {
	now := time.Now()
	var expires any
	if arg.ExpiresAt != nil {
		expires = *arg.ExpiresAt
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO api_keys (name, key_hash, key_prefix, permissions, expires_at, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		arg.Name, arg.KeyHash, arg.KeyPrefix, arg.Permissions, expires, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAPIKeyByHash looks up an API key by its stored hash.
func (q *Queries) GetAPIKeyByHash(ctx context.Context, keyHash string) (model.APIKey, error) {
	var k model.APIKey
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, key_hash, key_prefix, permissions, last_used_at, expires_at, is_active, created_at, updated_at
		 FROM api_keys WHERE key_hash = ?`, keyHash,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Permissions,
		&k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

// TouchAPIKey updates the last-used timestamp of an API key.
func (q *Queries) TouchAPIKey(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
