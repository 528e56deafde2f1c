package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/lightspeed"
	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/reconcile"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/testutil"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeShopAPI records every write and serves a configurable remote image
// list for the fresh-list fetch the apply path performs.
type fakeShopAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	images   []map[string]any
	nextID   int64
}

func (f *fakeShopAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		f.nextID++
		id := 9000 + f.nextID
		images := f.images
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/images.json"):
			_ = json.NewEncoder(w).Encode(map[string]any{"productImages": images})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/products.json"):
			_ = json.NewEncoder(w).Encode(map[string]any{"product": map[string]any{"id": id}})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/variants.json"):
			_ = json.NewEncoder(w).Encode(map[string]any{"variant": map[string]any{"id": id}})
		default:
			_, _ = w.Write([]byte("{}"))
		}
	})
}

func (f *fakeShopAPI) writes() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeShopAPI) findWrite(method, pathSuffix string) (recordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Method == method && strings.HasSuffix(r.Path, pathSuffix) {
			return r, true
		}
	}
	return recordedRequest{}, false
}

type stubSyncer struct {
	calls int
	fail  bool
}

func (s *stubSyncer) SyncProduct(context.Context, model.Shop, int64) error {
	s.calls++
	if s.fail {
		return errors.New("db locked")
	}
	return nil
}

func newApplyFixture(t *testing.T, api *fakeShopAPI, syncer *stubSyncer) (*ApplyService, *store.Queries, func()) {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	queries := store.New(db)

	testutil.TestShop(t, queries, "de",
		store.UpsertShopLanguageParams{Code: "nl", IsDefault: true, IsActive: true},
		store.UpsertShopLanguageParams{Code: "de", IsActive: true},
	)

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	clients := func(model.Shop) (*lightspeed.Client, error) {
		return lightspeed.NewClient(srv.URL, "key", "secret"), nil
	}
	svc := NewApplyService(queries, clients, syncer, NewEventService(db), testutil.TestLoggerSilent())
	return svc, queries, cleanup
}

func currentWidget() *model.ProductData {
	return &model.ProductData{
		ID:         200,
		Visibility: model.VisibilityVisible,
		ContentByLanguage: map[string]model.ProductContent{
			"nl": {Title: "Widget"},
			"de": {Title: "Gerät"},
		},
		Variants: []model.Variant{
			{ID: 21, SKU: "W-1", IsDefault: true, SortOrder: 1, PriceExcl: 10,
				TitleByLanguage: map[string]string{"nl": "Standaard", "de": "Standard"}},
		},
	}
}

// unchangedPayload mirrors currentWidget exactly.
func unchangedPayload() reconcile.ProductPayload {
	return reconcile.ProductPayload{
		Visibility: model.VisibilityVisible,
		ContentByLanguage: map[string]model.ProductContent{
			"nl": {Title: "Widget"},
			"de": {Title: "Gerät"},
		},
		Variants: []reconcile.VariantPayload{
			{VariantID: 21, SKU: "W-1", IsDefault: true, SortOrder: 1, PriceExcl: 10,
				TitleByLanguage: map[string]string{"nl": "Standaard", "de": "Standard"}},
		},
	}
}

func TestApplyUpdate_SkippedWhenNoEffectiveChange(t *testing.T) {
	api := &fakeShopAPI{}
	syncer := &stubSyncer{}
	svc, _, cleanup := newApplyFixture(t, api, syncer)
	defer cleanup()

	res, err := svc.Update(context.Background(), ApplyRequest{
		ShopTLD: "de", ProductID: 200,
		Payload: unchangedPayload(),
		Current: currentWidget(),
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Skipped, "identical payload must be a no-op success")
	assert.Empty(t, api.writes(), "a skipped apply performs no write")
	assert.Zero(t, syncer.calls, "a skipped apply does not re-sync")
}

func TestApplyUpdate_WritesContentVariantsAndImages(t *testing.T) {
	api := &fakeShopAPI{images: []map[string]any{
		{"id": 11, "src": "https://cdn/a.jpg", "sortOrder": 1},
		{"id": 12, "src": "https://cdn/b.jpg", "sortOrder": 2},
	}}
	syncer := &stubSyncer{}
	svc, queries, cleanup := newApplyFixture(t, api, syncer)
	defer cleanup()

	payload := unchangedPayload()
	content := payload.ContentByLanguage["de"]
	content.Title = "Gadget"
	payload.ContentByLanguage["de"] = content
	payload.Variants[0].PriceExcl = 12.5
	payload.Variants = append(payload.Variants, reconcile.VariantPayload{
		TempID: "tmp-1", SKU: "W-2", SortOrder: 2, PriceExcl: 15,
		TitleByLanguage: map[string]string{"nl": "Groot", "de": "Groß"},
	})
	// Keep a.jpg only: b.jpg must be deleted remotely.
	payload.Images = []model.ImageInfo{{ID: 11, Src: "https://cdn/a.jpg", SortOrder: 1}}

	res, err := svc.Update(context.Background(), ApplyRequest{
		ShopTLD: "de", ProductID: 200,
		Payload: payload,
		Current: currentWidget(),
		Changes: []string{"Content updated: title"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Warning)

	put, ok := api.findWrite(http.MethodPut, "/de/products/200.json")
	require.True(t, ok, "language-scoped content PUT expected")
	assert.Equal(t, "Gadget", put.Body["product"].(map[string]any)["title"])

	varPut, ok := api.findWrite(http.MethodPut, "/nl/variants/21.json")
	require.True(t, ok, "changed variant must be updated")
	assert.InDelta(t, 12.5, varPut.Body["variant"].(map[string]any)["priceExcl"], 0.001)

	varPost, ok := api.findWrite(http.MethodPost, "/nl/variants.json")
	require.True(t, ok, "new variant must be created")
	assert.Equal(t, "W-2", varPost.Body["variant"].(map[string]any)["sku"])

	_, ok = api.findWrite(http.MethodDelete, "/nl/products/200/images/12.json")
	assert.True(t, ok, "image dropped from the payload must be deleted")

	assert.Equal(t, 1, syncer.calls, "touched product must be re-synced locally")

	events, err := queries.ListEvents(t.Context(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, model.EventCategoryProduct, events[0].Category)
	assert.Contains(t, events[0].Metadata, "Content updated: title")
}

func TestApplyUpdate_LocalSyncFailureIsWarningNotError(t *testing.T) {
	api := &fakeShopAPI{}
	syncer := &stubSyncer{fail: true}
	svc, _, cleanup := newApplyFixture(t, api, syncer)
	defer cleanup()

	payload := unchangedPayload()
	content := payload.ContentByLanguage["de"]
	content.Title = "Gadget"
	payload.ContentByLanguage["de"] = content

	res, err := svc.Update(context.Background(), ApplyRequest{
		ShopTLD: "de", ProductID: 200,
		Payload: payload,
		Current: currentWidget(),
	})
	require.NoError(t, err, "partial success must not surface as an error")
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Warning, "local sync failure is reported as a warning")
}

func TestApplyCreate(t *testing.T) {
	api := &fakeShopAPI{}
	syncer := &stubSyncer{}
	svc, _, cleanup := newApplyFixture(t, api, syncer)
	defer cleanup()

	res, err := svc.Create(context.Background(), ApplyRequest{
		ShopTLD: "de",
		Payload: reconcile.ProductPayload{
			Visibility: model.VisibilityHidden,
			ContentByLanguage: map[string]model.ProductContent{
				"nl": {Title: "Widget"},
				"de": {Title: "Gerät"},
			},
			Variants: []reconcile.VariantPayload{
				{TempID: "tmp-1", SKU: "W-1", IsDefault: true, SortOrder: 1, PriceExcl: 10,
					TitleByLanguage: map[string]string{"nl": "Standaard", "de": "Standard"}},
			},
			Images: []model.ImageInfo{{Src: "https://cdn/a.jpg", SortOrder: 1}},
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotZero(t, res.ProductID)

	post, ok := api.findWrite(http.MethodPost, "/nl/products.json")
	require.True(t, ok)
	product := post.Body["product"].(map[string]any)
	assert.Equal(t, "Widget", product["title"])
	assert.Equal(t, "widget", product["url"], "slug derived from the title")
	assert.Equal(t, model.VisibilityHidden, product["visibility"])

	_, ok = api.findWrite(http.MethodPut, fmt.Sprintf("/de/products/%d.json", res.ProductID))
	assert.True(t, ok, "secondary language content set after create")

	_, ok = api.findWrite(http.MethodPost, "/nl/variants.json")
	assert.True(t, ok)

	_, ok = api.findWrite(http.MethodPost, fmt.Sprintf("/nl/products/%d/images.json", res.ProductID))
	assert.True(t, ok)

	assert.Equal(t, 1, syncer.calls)
}

func TestApplyValidation(t *testing.T) {
	api := &fakeShopAPI{}
	svc, _, cleanup := newApplyFixture(t, api, &stubSyncer{})
	defer cleanup()

	_, err := svc.Update(context.Background(), ApplyRequest{ProductID: 200})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(context.Background(), ApplyRequest{ShopTLD: "de"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(context.Background(), ApplyRequest{ShopTLD: "xx", ProductID: 200})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create(context.Background(), ApplyRequest{ShopTLD: "de"})
	assert.ErrorIs(t, err, ErrValidation)
}
