// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// insertKey creates an API key and returns the raw bearer token.
func insertKey(t *testing.T, db *sql.DB, perms []string, expiresAt *time.Time) string {
	t.Helper()

	rawKey, prefix, err := model.GenerateAPIKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	_, err = store.New(db).CreateAPIKey(context.Background(), store.CreateAPIKeyParams{
		Name:        "test key",
		KeyHash:     model.HashAPIKey(rawKey),
		KeyPrefix:   prefix,
		Permissions: model.PermissionsToJSON(perms),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}
	return rawKey
}

func authRequest(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr APIError
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return apiErr.Error.Code
}

func TestAPIKeyAuth(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	rawKey := insertKey(t, db, model.AllPermissions(), nil)

	handler := APIKeyAuth(db)(okHandler)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown key", "Bearer not-a-real-key", http.StatusUnauthorized},
		{"valid key", "Bearer " + rawKey, http.StatusOK},
		{"case-insensitive scheme", "bearer " + rawKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := authRequest(handler, tt.authHeader)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && errorCode(t, w) != "unauthorized" {
				t.Errorf("error code = %q, want unauthorized", errorCode(t, w))
			}
		})
	}
}

func TestAPIKeyAuth_ExpiredKey(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	past := time.Now().Add(-time.Hour)
	rawKey := insertKey(t, db, model.AllPermissions(), &past)

	w := authRequest(APIKeyAuth(db)(okHandler), "Bearer "+rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired key", w.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	key := model.APIKey{
		ID:          1,
		IsActive:    true,
		Permissions: model.PermissionsToJSON([]string{model.PermissionProductsRead}),
	}

	handler := RequirePermission(model.PermissionProductsWrite)(okHandler)

	// Key present but lacking the permission.
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), ContextKeyAPIKey, key))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if errorCode(t, w) != "forbidden" {
		t.Errorf("error code = %q, want forbidden", errorCode(t, w))
	}

	// No key in context at all.
	w = authRequest(handler, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", w.Code)
	}

	// Key with the permission passes through.
	allowed := RequirePermission(model.PermissionProductsRead)(okHandler)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), ContextKeyAPIKey, key))
	w = httptest.NewRecorder()
	allowed.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status with permission = %d, want 200", w.Code)
	}
}

func TestAPIRateLimit(t *testing.T) {
	key := model.APIKey{ID: 42, IsActive: true}
	handler := APIRateLimit(1, 2)(okHandler)

	request := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
		req = req.WithContext(context.WithValue(req.Context(), ContextKeyAPIKey, key))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Burst of 2 allowed, third request rejected.
	if got := request(); got != http.StatusOK {
		t.Errorf("first request status = %d", got)
	}
	if got := request(); got != http.StatusOK {
		t.Errorf("second request status = %d", got)
	}
	if got := request(); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
}

func TestGlobalRateLimiter_PerClientIP(t *testing.T) {
	handler := NewGlobalRateLimiter(1, 1).Middleware()(okHandler)

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := request("10.0.0.1"); got != http.StatusOK {
		t.Errorf("first request status = %d", got)
	}
	if got := request("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("repeat from same IP status = %d, want 429", got)
	}
	// A different client is not affected.
	if got := request("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", got)
	}
}
