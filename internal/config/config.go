// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"SHOPSYNC_DB_PATH" envDefault:"./data/shopsync.db"`
	ServerHost string `env:"SHOPSYNC_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"SHOPSYNC_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"SHOPSYNC_ENV" envDefault:"development"`
	LogLevel   string `env:"SHOPSYNC_LOG_LEVEL" envDefault:"info"`

	// Shop API configuration
	ShopAPIBase string `env:"SHOPSYNC_SHOP_API_BASE" envDefault:"https://api.webshopapp.com"`

	// SourceShopTLD names the shop whose catalog is the synchronization
	// source; all other shops are targets.
	SourceShopTLD string `env:"SHOPSYNC_SOURCE_SHOP_TLD" envDefault:"nl"`

	// Translation provider configuration
	OpenAIAPIKey     string `env:"SHOPSYNC_OPENAI_API_KEY"`
	TranslationModel string `env:"SHOPSYNC_TRANSLATION_MODEL" envDefault:"gpt-4o-mini"`

	// Catalog sync configuration
	SyncCron    string `env:"SHOPSYNC_SYNC_CRON" envDefault:"0 */4 * * *"` // Every 4 hours
	SyncEnabled bool   `env:"SHOPSYNC_SYNC_ENABLED" envDefault:"true"`

	// Operation log retention, in days. Older entries are pruned daily.
	EventRetentionDays int `env:"SHOPSYNC_EVENT_RETENTION_DAYS" envDefault:"90"`

	// Cache configuration
	RedisURL     string `env:"SHOPSYNC_REDIS_URL"`                           // Optional Redis URL for distributed caching
	CachePrefix  string `env:"SHOPSYNC_CACHE_PREFIX" envDefault:"shopsync:"` // Redis key prefix
	CacheTTL     int    `env:"SHOPSYNC_CACHE_TTL" envDefault:"3600"`         // Default cache TTL in seconds
	CacheMaxSize int    `env:"SHOPSYNC_CACHE_MAX_SIZE" envDefault:"10000"`   // Max memory cache entries

	// Seeding configuration
	DoSeed bool `env:"SHOPSYNC_DO_SEED" envDefault:"false"` // Enable database seeding
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// TranslationEnabled returns true if a translation provider is configured.
func (c Config) TranslationEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// ShopCredentials holds the API key pair for one shop.
type ShopCredentials struct {
	APIKey    string
	APISecret string
}

// Credentials resolves the shop API credentials for a TLD from the
// environment (SHOPSYNC_LS_KEY_<TLD> / SHOPSYNC_LS_SECRET_<TLD>).
func (c Config) Credentials(tld string) (ShopCredentials, error) {
	suffix := strings.ToUpper(tld)
	key := os.Getenv("SHOPSYNC_LS_KEY_" + suffix)
	secret := os.Getenv("SHOPSYNC_LS_SECRET_" + suffix)
	if key == "" || secret == "" {
		return ShopCredentials{}, fmt.Errorf("missing API credentials for shop TLD=%s", suffix)
	}
	return ShopCredentials{APIKey: key, APISecret: secret}, nil
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}
