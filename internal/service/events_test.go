// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/testutil"
)

func TestEventService_LogAndList(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := NewEventService(db)
	ctx := t.Context()

	err := svc.LogProductEvent(ctx, model.EventLevelInfo, "Product updated (id 200) in shop de", 1, map[string]any{
		"product_id": 200,
		"changes":    []string{"Content updated: title"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.LogSyncEvent(ctx, model.EventLevelError, "Catalog sync failed", 1, nil))

	events, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "sync", events[0].Category)
	assert.Equal(t, model.EventLevelError, events[0].Level)
	assert.Equal(t, "product", events[1].Category)
	assert.True(t, strings.Contains(events[1].Metadata, "Content updated: title"))
}

func TestEventService_MetadataMarshalFailureStillLogs(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := NewEventService(db)
	ctx := t.Context()

	// Channels cannot be marshalled; the event must still be written.
	err := svc.LogInfo(ctx, "system", "marshal fallback", 0, map[string]any{"ch": make(chan int)})
	require.NoError(t, err)

	events, err := svc.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "marshal fallback", events[0].Message)
}

func TestEventService_DeleteOldEvents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := NewEventService(db)
	ctx := t.Context()

	require.NoError(t, svc.LogInfo(ctx, "system", "recent entry", 0, nil))

	// Pruning with a generous window keeps the fresh entry.
	require.NoError(t, svc.DeleteOldEvents(ctx, 24*time.Hour))

	events, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
