// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestGenerateAPIKey(t *testing.T) {
	rawKey, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if len(rawKey) < 32 {
		t.Errorf("GenerateAPIKey() rawKey length = %d, want >= 32", len(rawKey))
	}
	if len(prefix) != 8 {
		t.Errorf("GenerateAPIKey() prefix length = %d, want 8", len(prefix))
	}
	if !strings.HasPrefix(rawKey, prefix) {
		t.Errorf("GenerateAPIKey() prefix %q is not a prefix of rawKey %q", prefix, rawKey)
	}

	rawKey2, _, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() second call error = %v", err)
	}
	if rawKey == rawKey2 {
		t.Error("GenerateAPIKey() generated identical keys")
	}
}

func TestHashAPIKey(t *testing.T) {
	hash := HashAPIKey("test-api-key-12345")
	if len(hash) != 64 {
		t.Errorf("HashAPIKey() length = %d, want 64", len(hash))
	}
	if hash != HashAPIKey("test-api-key-12345") {
		t.Error("HashAPIKey() is not deterministic")
	}
	if hash == HashAPIKey("test-api-key-12346") {
		t.Error("HashAPIKey() collision for different keys")
	}
}

func TestAPIKeyPermissions(t *testing.T) {
	key := &APIKey{Permissions: PermissionsToJSON([]string{PermissionProductsRead, PermissionSyncRun})}

	if !key.HasPermission(PermissionProductsRead) {
		t.Error("HasPermission(products:read) = false, want true")
	}
	if key.HasPermission(PermissionProductsWrite) {
		t.Error("HasPermission(products:write) = true, want false")
	}

	empty := &APIKey{Permissions: "[]"}
	if got := empty.GetPermissions(); len(got) != 0 {
		t.Errorf("GetPermissions() on empty list = %v, want none", got)
	}
	if PermissionsToJSON(nil) != "[]" {
		t.Errorf("PermissionsToJSON(nil) = %q, want []", PermissionsToJSON(nil))
	}
}

func TestAPIKeyValidity(t *testing.T) {
	active := &APIKey{IsActive: true}
	if !active.IsValid() {
		t.Error("key without expiry should be valid")
	}

	expired := &APIKey{
		IsActive:  true,
		ExpiresAt: sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
	}
	if !expired.IsExpired() {
		t.Error("IsExpired() = false for a past expiry")
	}
	if expired.IsValid() {
		t.Error("expired key should not be valid")
	}

	inactive := &APIKey{IsActive: false}
	if inactive.IsValid() {
		t.Error("inactive key should not be valid")
	}
}
