package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/lightspeed"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/service"
	"github.com/olegiv/shopsync-go/internal/store"
	catalog "github.com/olegiv/shopsync-go/internal/sync"
	"github.com/olegiv/shopsync-go/internal/testutil"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// stubTranslator echoes a deterministic translation per item and counts
// provider calls so memoization can be asserted.
type stubTranslator struct {
	calls int
	fail  bool
}

func (*stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) TranslateBatch(_ context.Context, items []translate.Item) ([]string, error) {
	s.calls++
	if s.fail {
		return nil, assert.AnError
	}
	out := make([]string, len(items))
	for i, item := range items {
		if item.Text == "" {
			continue
		}
		out[i] = "[" + item.TargetLang + "] " + item.Text
	}
	return out, nil
}

type fixture struct {
	handler    *Handler
	queries    *store.Queries
	rawKey     string
	router     http.Handler
	translator *stubTranslator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	queries := store.New(db)

	// Shop API stub: empty catalogs, empty image lists.
	shopAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/products.json"):
			_, _ = w.Write([]byte(`{"products":[]}`))
		case strings.HasSuffix(r.URL.Path, "/variants.json"):
			_, _ = w.Write([]byte(`{"variants":[]}`))
		case strings.HasSuffix(r.URL.Path, "/images.json"):
			_, _ = w.Write([]byte(`{"productImages":[]}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(shopAPI.Close)

	clients := func(model.Shop) (*lightspeed.Client, error) {
		return lightspeed.NewClient(shopAPI.URL, "key", "secret"), nil
	}

	log := testutil.TestLoggerSilent()
	syncer := catalog.NewService(queries, catalog.ClientFactory(clients), log)
	events := service.NewEventService(db)
	products := service.NewProductService(queries, "nl")
	apply := service.NewApplyService(queries, service.ClientFactory(clients), syncer, events, log)

	translator := &stubTranslator{}
	h := NewHandler(db, products, apply, events, syncer, translator, log)
	h.SetEditService(service.NewEditService(queries, products, translator, log))

	rawKey, prefix, err := model.GenerateAPIKey()
	require.NoError(t, err)
	_, err = queries.CreateAPIKey(context.Background(), store.CreateAPIKeyParams{
		Name:        "test",
		KeyHash:     model.HashAPIKey(rawKey),
		KeyPrefix:   prefix,
		Permissions: model.PermissionsToJSON(model.AllPermissions()),
	})
	require.NoError(t, err)

	return &fixture{handler: h, queries: queries, rawKey: rawKey, router: h.Routes(), translator: translator}
}

func (f *fixture) request(t *testing.T, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.rawKey)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/product-details?sku=W-1", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductDetails_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/product-details", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing sku and product_id is a validation error")

	rec = f.request(t, http.MethodGet, "/product-details?product_id=abc", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductDetails_NotFoundDistinctFromValidation(t *testing.T) {
	f := newFixture(t)
	testutil.TestShop(t, f.queries, "nl",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true})

	rec := f.request(t, http.MethodGet, "/product-details?sku=NOPE", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductDetails_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nlID := testutil.TestShop(t, f.queries, "nl",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true})
	require.NoError(t, f.queries.UpsertProduct(ctx, store.UpsertProductParams{
		ShopID: nlID, RemoteProductID: 100, Visibility: "visible",
	}))
	require.NoError(t, f.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
		ShopID: nlID, RemoteProductID: 100, LanguageCode: "nl", Title: "Widget",
	}))
	require.NoError(t, f.queries.UpsertVariant(ctx, store.UpsertVariantParams{
		ShopID: nlID, RemoteProductID: 100, RemoteVariantID: 1, SKU: "W-1", IsDefault: true, SortOrder: 1,
	}))

	rec := f.request(t, http.MethodGet, "/product-details?sku=W-1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data service.ProductDetails `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Source, 1)
	assert.Equal(t, "Widget", resp.Data.Source[0].Content("nl").Title)
	assert.Contains(t, resp.Data.Shops, "nl")
}

func TestTranslate_BatchWithEmptyText(t *testing.T) {
	f := newFixture(t)

	body := `{"items":[
		{"sourceLang":"nl","targetLang":"de","field":"title","text":"Widget"},
		{"sourceLang":"nl","targetLang":"de","field":"description","text":""},
		{"sourceLang":"nl","targetLang":"de","field":"title","text":"Widget"}
	]}`
	rec := f.request(t, http.MethodPost, "/translate", body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []TranslatedItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "[de] Widget", resp.Data[0].TranslatedText)
	assert.Empty(t, resp.Data[1].TranslatedText, "empty text must be tolerated")
	assert.Equal(t, resp.Data[0].TranslatedText, resp.Data[2].TranslatedText, "duplicates share one translation")
}

func TestTranslate_MissingTargetLang(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/translate", `{"items":[{"sourceLang":"nl","field":"title","text":"x"}]}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslate_SessionMemoAndRetranslate(t *testing.T) {
	f := newFixture(t)
	body := `{"items":[{"sourceLang":"nl","targetLang":"de","field":"title","text":"Widget"}]}`

	rec := f.request(t, http.MethodPost, "/translate", body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.translator.calls)

	rec = f.request(t, http.MethodPost, "/translate", body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.translator.calls, "a repeated request is served from the session memo")

	retry := `{"retranslate":true,"items":[{"sourceLang":"nl","targetLang":"de","field":"title","text":"Widget"}]}`
	rec = f.request(t, http.MethodPost, "/translate", retry, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.translator.calls, "retranslate must bypass the memo")
}

func TestEditSessions_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nlID := testutil.TestShop(t, f.queries, "nl",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true})
	testutil.TestShop(t, f.queries, "de",
		store.UpsertShopLanguageParams{Code: "de", IsDefault: true, IsActive: true})
	require.NoError(t, f.queries.UpsertProduct(ctx, store.UpsertProductParams{
		ShopID: nlID, RemoteProductID: 100, Visibility: "visible",
	}))
	require.NoError(t, f.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
		ShopID: nlID, RemoteProductID: 100, LanguageCode: "nl", Title: "Widget",
	}))
	require.NoError(t, f.queries.UpsertVariant(ctx, store.UpsertVariantParams{
		ShopID: nlID, RemoteProductID: 100, RemoteVariantID: 1, SKU: "W-1", IsDefault: true, SortOrder: 1,
	}))

	rec := f.request(t, http.MethodPost, "/edit-sessions", `{"sku":"W-1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var opened struct {
		Data service.EditSessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	sid := opened.Data.ID
	require.NotEmpty(t, sid)

	de, ok := opened.Data.Targets["de"]
	require.True(t, ok, "the shop without the SKU gets a create-mode buffer")
	assert.Equal(t, "create", de.Mode)
	assert.Equal(t, "[de] Widget", de.Content["de"].Title)
	assert.False(t, de.Dirty)

	actions := `{"actions":[{"shop":"de","type":"update_field","lang":"de","field":"title","value":"Handgerät"}]}`
	rec = f.request(t, http.MethodPost, "/edit-sessions/"+sid+"/actions", actions, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var acted struct {
		Data service.EditSessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acted))
	assert.True(t, acted.Data.Targets["de"].Dirty)
	assert.NotEmpty(t, acted.Data.Targets["de"].Changes)

	rec = f.request(t, http.MethodGet, "/edit-sessions/"+sid+"/payload?shop=de", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data service.EditPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "create", payload.Data.Mode)
	assert.Equal(t, "Handgerät", payload.Data.Payload.ContentByLanguage["de"].Title)

	rec = f.request(t, http.MethodGet, "/edit-sessions/"+sid+"/payload", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "payload requires a shop")

	rec = f.request(t, http.MethodDelete, "/edit-sessions/"+sid, "", true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, http.MethodGet, "/edit-sessions/"+sid, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a closed session is gone")
}

func TestEditSessions_UnavailableWithoutService(t *testing.T) {
	f := newFixture(t)
	f.handler.edit = nil

	rec := f.request(t, http.MethodGet, "/edit-sessions/abc", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateProduct_SkippedNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deID := testutil.TestShop(t, f.queries, "de",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true})
	require.NoError(t, f.queries.UpsertProduct(ctx, store.UpsertProductParams{
		ShopID: deID, RemoteProductID: 200, Visibility: "visible",
	}))
	require.NoError(t, f.queries.UpsertProductContent(ctx, store.UpsertProductContentParams{
		ShopID: deID, RemoteProductID: 200, LanguageCode: "nl", Title: "Widget",
	}))

	body := `{
		"targetShopTld": "de",
		"updateProductData": {
			"visibility": "visible",
			"content_by_language": {"nl": {"title": "Widget"}},
			"variants": [],
			"images": []
		}
	}`
	rec := f.request(t, http.MethodPut, "/products/200", body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data service.ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	assert.True(t, resp.Data.Skipped, "no effective change must report skipped, not error")
}

func TestTriggerSync(t *testing.T) {
	f := newFixture(t)
	testutil.TestShop(t, f.queries, "de",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true})

	rec := f.request(t, http.MethodPost, "/sync/de", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/sync/xx", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodGet, "/sync-logs", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []model.SyncLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.SyncStatusSuccess, resp.Data[0].Status)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String(), "unauthenticated callers get the minimal body")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer "+f.rawKey)
	rec = httptest.NewRecorder()
	f.handler.Health(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"checks"`)

	rec = httptest.NewRecorder()
	f.handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
