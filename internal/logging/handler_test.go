// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/testutil"
)

func newTestLogger(t *testing.T) (*slog.Logger, *store.Queries, *bytes.Buffer) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewEventLogHandler(inner, db)), store.New(db), &buf
}

func TestEventLogHandler_MirrorsWarnAndAbove(t *testing.T) {
	logger, queries, buf := newTestLogger(t)
	ctx := context.Background()

	logger.Info("just informational")
	logger.Warn("sync fell behind", "shop", "de")
	logger.Error("product update failed", "product_id", 200)

	events, err := queries.ListEvents(ctx, 10)
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (INFO must not be mirrored)", len(events))
	}

	// Newest first.
	if events[0].Level != model.EventLevelError {
		t.Errorf("events[0].Level = %q, want error", events[0].Level)
	}
	if events[0].Category != model.EventCategoryProduct {
		t.Errorf("events[0].Category = %q, want product", events[0].Category)
	}
	if events[1].Category != model.EventCategorySync {
		t.Errorf("events[1].Category = %q, want sync", events[1].Category)
	}
	if !strings.Contains(events[0].Metadata, `"product_id":"200"`) {
		t.Errorf("metadata %q missing product_id attr", events[0].Metadata)
	}

	// The inner handler still sees everything.
	if !strings.Contains(buf.String(), "just informational") {
		t.Error("inner handler did not receive the INFO record")
	}
}

func TestEventLogHandler_ExplicitCategoryWins(t *testing.T) {
	logger, queries, _ := newTestLogger(t)

	logger.Warn("sync looked slow today", "category", model.EventCategoryAPI)

	events, err := queries.ListEvents(context.Background(), 1)
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Category != model.EventCategoryAPI {
		t.Errorf("Category = %q, the category attr must beat message inference", events[0].Category)
	}
	if strings.Contains(events[0].Metadata, "category") {
		t.Errorf("metadata %q should not repeat the category attr", events[0].Metadata)
	}
}

func TestEventLogHandler_WithAttrsPreservesMirroring(t *testing.T) {
	logger, queries, _ := newTestLogger(t)

	logger.With("shop", "nl").Error("translation provider unavailable")

	events, err := queries.ListEvents(context.Background(), 1)
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Category != model.EventCategoryTranslate {
		t.Errorf("Category = %q, want translate", events[0].Category)
	}
}

func TestEscapeJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`has "quotes"`, `has \"quotes\"`},
		{"line\nbreak", `line\nbreak`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeJSON(tt.in); got != tt.want {
			t.Errorf("escapeJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
