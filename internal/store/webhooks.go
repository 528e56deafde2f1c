// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// Webhook is one configured outbound notification endpoint.
type Webhook struct {
	ID        int64
	Name      string
	URL       string
	Secret    string
	Events    string // JSON array of subscribed event types
	Headers   string // JSON object of extra request headers
	IsActive  bool
	CreatedAt time.Time
}

// WebhookDelivery is one delivery attempt record for a webhook event.
type WebhookDelivery struct {
	ID           int64
	WebhookID    int64
	Event        string
	Payload      string
	Status       string
	Attempts     int64
	ResponseCode sql.NullInt64
	ErrorMessage sql.NullString
	NextRetryAt  sql.NullTime
	DeliveredAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateWebhookParams holds the fields for registering an endpoint.
type CreateWebhookParams struct {
	Name    string
	URL     string
	Secret  string
	Events  string
	Headers string
}

// CreateWebhook registers a notification endpoint.
func (q *Queries) CreateWebhook(ctx context.Context, arg CreateWebhookParams) (Webhook, error) {
	if arg.Events == "" {
		arg.Events = "[]"
	}
	if arg.Headers == "" {
		arg.Headers = "{}"
	}
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO webhooks (name, url, secret, events, headers, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		arg.Name, arg.URL, arg.Secret, arg.Events, arg.Headers, now,
	)
	if err != nil {
		return Webhook{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Webhook{}, err
	}
	return Webhook{
		ID: id, Name: arg.Name, URL: arg.URL, Secret: arg.Secret,
		Events: arg.Events, Headers: arg.Headers, IsActive: true, CreatedAt: now,
	}, nil
}

// ListWebhooksForEvent returns active endpoints whose subscription list
// mentions the event type. The LIKE match is coarse; callers re-check the
// parsed event list before dispatching.
func (q *Queries) ListWebhooksForEvent(ctx context.Context, event string) ([]Webhook, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, url, secret, events, headers, is_active, created_at
		 FROM webhooks WHERE is_active = 1 AND events LIKE '%' || ? || '%'`, event)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hooks []Webhook
	for rows.Next() {
		var w Webhook
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.Events, &w.Headers, &w.IsActive, &w.CreatedAt); err != nil {
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

// CreateWebhookDelivery inserts a pending delivery record.
func (q *Queries) CreateWebhookDelivery(ctx context.Context, webhookID int64, event, payload string) (int64, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, event, payload, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'pending', ?, ?)`,
		webhookID, event, payload, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetWebhookDelivery loads one delivery record.
func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (WebhookDelivery, error) {
	var d WebhookDelivery
	err := q.db.QueryRowContext(ctx,
		`SELECT id, webhook_id, event, payload, status, attempts, response_code,
		        error_message, next_retry_at, delivered_at, created_at, updated_at
		 FROM webhook_deliveries WHERE id = ?`, id).
		Scan(&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Status, &d.Attempts,
			&d.ResponseCode, &d.ErrorMessage, &d.NextRetryAt, &d.DeliveredAt,
			&d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// MarkDeliverySuccess records a successful delivery.
func (q *Queries) MarkDeliverySuccess(ctx context.Context, id int64, responseCode int) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET status = 'delivered', attempts = attempts + 1, response_code = ?,
		     delivered_at = ?, updated_at = ?
		 WHERE id = ?`,
		responseCode, now, now, id,
	)
	return err
}

// MarkDeliveryRetry records a failed attempt and schedules the next one.
func (q *Queries) MarkDeliveryRetry(ctx context.Context, id int64, responseCode int, errMsg string, nextRetry time.Time) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET status = 'pending', attempts = attempts + 1,
		     response_code = NULLIF(?, 0), error_message = ?, next_retry_at = ?, updated_at = ?
		 WHERE id = ?`,
		responseCode, errMsg, nextRetry, now, id,
	)
	return err
}

// MarkDeliveryDead records a delivery that exhausted its attempts.
func (q *Queries) MarkDeliveryDead(ctx context.Context, id int64, errMsg string) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
		 SET status = 'dead', attempts = attempts + 1, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		errMsg, now, id,
	)
	return err
}

// ListDueDeliveries returns pending deliveries whose retry time has passed,
// oldest first. Used by the retry sweep.
func (q *Queries) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, webhook_id, event, payload, status, attempts, response_code,
		        error_message, next_retry_at, delivered_at, created_at, updated_at
		 FROM webhook_deliveries
		 WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY created_at LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deliveries []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Status, &d.Attempts,
			&d.ResponseCode, &d.ErrorMessage, &d.NextRetryAt, &d.DeliveredAt,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// GetWebhook loads one endpoint by ID.
func (q *Queries) GetWebhook(ctx context.Context, id int64) (Webhook, error) {
	var w Webhook
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, url, secret, events, headers, is_active, created_at
		 FROM webhooks WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.Events, &w.Headers, &w.IsActive, &w.CreatedAt)
	return w, err
}
