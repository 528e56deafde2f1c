// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Delivery configuration constants.
const (
	MaxAttempts    = 5                // attempts before a delivery is marked dead
	InitialBackoff = 1 * time.Minute  // backoff after the first failure
	MaxBackoff     = 24 * time.Hour   // backoff ceiling
	RequestTimeout = 30 * time.Second // per-request timeout
	MaxResponseLen = 10 * 1024        // response body bytes kept for diagnostics
	UserAgent      = "shopsync/1.0"
)

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	Success     bool
	StatusCode  int
	Error       error
	ShouldRetry bool
}

var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery attempts one HTTP delivery and records the outcome.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	record, err := d.queries.GetWebhookDelivery(ctx, delivery.DeliveryID)
	if err != nil {
		d.logger.Error("loading delivery record failed",
			"delivery_id", delivery.DeliveryID, "error", err)
		return
	}
	if record.Status == "delivered" || record.Status == "dead" {
		return
	}

	result := d.attemptDelivery(ctx, delivery)

	if result.Success {
		if err := d.queries.MarkDeliverySuccess(ctx, delivery.DeliveryID, result.StatusCode); err != nil {
			d.logger.Error("recording delivery success failed",
				"delivery_id", delivery.DeliveryID, "error", err)
			return
		}
		d.logger.Info("webhook delivered",
			"delivery_id", delivery.DeliveryID,
			"webhook_id", delivery.WebhookID,
			"event", delivery.Event,
			"status_code", result.StatusCode)
		return
	}

	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	newAttempts := record.Attempts + 1

	if !result.ShouldRetry || newAttempts >= MaxAttempts {
		if err := d.queries.MarkDeliveryDead(ctx, delivery.DeliveryID, errMsg); err != nil {
			d.logger.Error("recording dead delivery failed",
				"delivery_id", delivery.DeliveryID, "error", err)
			return
		}
		d.logger.Warn("webhook delivery dead",
			"delivery_id", delivery.DeliveryID,
			"webhook_id", delivery.WebhookID,
			"attempts", newAttempts,
			"reason", errMsg)
		return
	}

	backoff := calculateBackoff(newAttempts)
	nextRetry := time.Now().Add(backoff)
	if err := d.queries.MarkDeliveryRetry(ctx, delivery.DeliveryID, result.StatusCode, errMsg, nextRetry); err != nil {
		d.logger.Error("scheduling delivery retry failed",
			"delivery_id", delivery.DeliveryID, "error", err)
		return
	}
	d.logger.Info("webhook delivery scheduled for retry",
		"delivery_id", delivery.DeliveryID,
		"attempt", newAttempts,
		"next_retry_at", nextRetry.Format(time.RFC3339))
}

// attemptDelivery performs the signed HTTP POST.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("creating request: %w", err),
			ShouldRetry: false,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-Signature", GenerateSignature(delivery.Payload, delivery.Secret))
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery-ID", fmt.Sprintf("%d", delivery.DeliveryID))
	for key, value := range delivery.Headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors are final, except timeout and throttling.
		retry := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: retry,
		}
	default:
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: true,
		}
	}
}

// calculateBackoff doubles the delay per attempt, capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Duration(float64(InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	return backoff
}
