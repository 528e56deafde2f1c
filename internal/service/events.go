// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic on top of the store and the shop
// API client: the product-details document, payload application, and the
// operation log.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
)

// EventService writes and reads the operation log.
type EventService struct {
	queries *store.Queries
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{queries: store.New(db)}
}

// LogEvent creates a new operation log entry. shopID 0 means the event is
// not scoped to one shop.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, shopID int64, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if jsonBytes, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		ShopID:    shopID,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to log event", "category", category, "error", err)
		return err
	}
	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, shopID int64, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, shopID, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, shopID int64, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, shopID, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, shopID int64, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, shopID, metadata)
}

// LogProductEvent logs a product-related event.
func (s *EventService) LogProductEvent(ctx context.Context, level, message string, shopID int64, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryProduct, message, shopID, metadata)
}

// LogSyncEvent logs a sync-related event.
func (s *EventService) LogSyncEvent(ctx context.Context, level, message string, shopID int64, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySync, message, shopID, metadata)
}

// ListRecent returns the most recent operation log entries, newest first.
func (s *EventService) ListRecent(ctx context.Context, limit int) ([]model.Event, error) {
	return s.queries.ListEvents(ctx, limit)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.queries.DeleteOldEvents(ctx, cutoff)
}
