// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook provides outbound event notifications with HMAC-signed
// payloads and bounded retries.
package webhook

import (
	"context"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
)

// Event types dispatched by the service.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventSyncCompleted  = "sync.completed"
	EventTest           = "webhook.test"
)

// Event is one notification to be delivered to subscribed endpoints.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates an event stamped with the current UTC time.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ProductEventData describes a product write applied to a target shop.
type ProductEventData struct {
	ShopTLD   string   `json:"shop_tld"`
	ProductID int64    `json:"product_id"`
	SKU       string   `json:"sku,omitempty"`
	Changes   []string `json:"changes,omitempty"`
}

// SyncEventData describes a completed catalog sync run.
type SyncEventData struct {
	ShopTLD string            `json:"shop_tld"`
	Metrics model.SyncMetrics `json:"metrics"`
}

// TestEventData is the payload of manually triggered test events.
type TestEventData struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductNotifier adapts the debouncer to the apply service's notification
// hooks. Rapid edits to the same product coalesce into one delivery.
type ProductNotifier struct {
	Debouncer *Debouncer
}

// ProductCreated dispatches a product.created event.
func (n ProductNotifier) ProductCreated(ctx context.Context, shopTLD string, productID int64, changes []string) {
	_ = n.Debouncer.DispatchEvent(ctx, EventProductCreated, ProductEventData{
		ShopTLD: shopTLD, ProductID: productID, Changes: changes,
	})
}

// ProductUpdated dispatches a product.updated event.
func (n ProductNotifier) ProductUpdated(ctx context.Context, shopTLD string, productID int64, changes []string) {
	_ = n.Debouncer.DispatchEvent(ctx, EventProductUpdated, ProductEventData{
		ShopTLD: shopTLD, ProductID: productID, Changes: changes,
	})
}
