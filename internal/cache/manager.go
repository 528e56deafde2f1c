// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/shopsync-go/internal/store"
)

// Options configures the cache manager.
type Options struct {
	// RedisURL selects the Redis backend when non-empty.
	// Example: redis://localhost:6379/0
	RedisURL string

	// Prefix is the key prefix for the Redis backend.
	Prefix string

	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for the memory backend (0 = unlimited).
	MaxSize int
}

// Manager owns the cache backend and the typed caches built on top of it.
type Manager struct {
	Backend   Cacher
	Languages *LanguageCache
	Images    *ImageCache
}

// NewManager creates a cache manager. When a Redis URL is configured it tries
// Redis first and falls back to the in-memory backend if the connection fails,
// so a cache outage never takes the dashboard down.
func NewManager(opts Options, queries *store.Queries) *Manager {
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = time.Hour
	}

	var backend Cacher
	if opts.RedisURL != "" {
		redisCache, err := NewRedisCacheFromURL(opts.RedisURL, opts.Prefix, opts.DefaultTTL)
		if err != nil {
			slog.Warn("redis cache unavailable, falling back to memory cache", "error", err)
		} else {
			backend = redisCache
			slog.Info("using redis cache", "prefix", opts.Prefix)
		}
	}
	if backend == nil {
		backend = NewMemoryCache(MemoryCacheOptions{
			DefaultTTL:      opts.DefaultTTL,
			MaxSize:         opts.MaxSize,
			CleanupInterval: time.Minute,
		})
	}

	return &Manager{
		Backend:   backend,
		Languages: NewLanguageCache(queries),
		Images:    NewImageCache(backend),
	}
}

// ClearAll clears the backend and all typed caches.
func (m *Manager) ClearAll(ctx context.Context) {
	if err := m.Backend.Clear(ctx); err != nil {
		slog.Warn("clearing cache backend", "error", err)
	}
	m.Languages.Invalidate()
}

// Stats returns statistics for the cache backend.
func (m *Manager) Stats() Stats {
	if sp, ok := m.Backend.(StatsProvider); ok {
		return sp.Stats()
	}
	return Stats{}
}

// Close releases the backend resources.
func (m *Manager) Close() error {
	return m.Backend.Close()
}
