// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the recurring background jobs: the catalog sync
// across all shops and the operation log cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/service"
)

// CatalogSyncer runs a full catalog sync across all shops.
type CatalogSyncer interface {
	SyncAll(ctx context.Context) error
}

// Scheduler drives the periodic jobs via cron.
type Scheduler struct {
	cron      *cron.Cron
	syncer    CatalogSyncer
	events    *service.EventService
	logger    *slog.Logger
	syncSpec  string
	retention time.Duration
}

// New creates a scheduler. The sync spec is a standard 5-field cron
// expression. A non-positive retention disables the cleanup job.
func New(syncer CatalogSyncer, events *service.EventService, logger *slog.Logger, syncSpec string, retention time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		syncer:    syncer,
		events:    events,
		logger:    logger,
		syncSpec:  syncSpec,
		retention: retention,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.syncSpec, s.runSync)
	if err != nil {
		return fmt.Errorf("invalid sync cron spec %q: %w", s.syncSpec, err)
	}

	if s.retention > 0 {
		// Daily, off-peak.
		if _, err := s.cron.AddFunc("30 3 * * *", s.runCleanup); err != nil {
			return fmt.Errorf("adding cleanup job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "sync_spec", s.syncSpec, "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// runSync runs one full catalog sync across all shops.
func (s *Scheduler) runSync() {
	ctx := context.Background()
	start := time.Now()
	s.logger.Info("scheduled catalog sync starting")

	_ = s.syncer.SyncAll(ctx)

	elapsed := time.Since(start).Round(time.Millisecond)
	s.logger.Info("scheduled catalog sync finished", "elapsed", elapsed)
	_ = s.events.LogSyncEvent(ctx, model.EventLevelInfo, "Scheduled catalog sync finished", 0, map[string]any{
		"elapsed": elapsed.String(),
	})
}

// runCleanup prunes operation log entries older than the retention window.
func (s *Scheduler) runCleanup() {
	ctx := context.Background()

	if err := s.events.DeleteOldEvents(ctx, s.retention); err != nil {
		s.logger.Error("operation log cleanup failed", "error", err)
		return
	}
	s.logger.Info("operation log pruned", "retention", s.retention.String())
}
