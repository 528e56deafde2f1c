// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/reconcile"
	"github.com/olegiv/shopsync-go/internal/store"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// editSessionTTL bounds how long an abandoned edit session is kept. The
// dashboard closes sessions explicitly on navigation; the TTL only catches
// clients that vanished.
const editSessionTTL = 30 * time.Minute

// EditService owns server-side edit sessions: per-product edit buffers for
// every target shop, a session-scoped translation memo, and the payload
// construction the apply endpoints consume. Sessions live in memory only.
type EditService struct {
	queries  *store.Queries
	products *ProductService
	provider translate.Provider
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*editSession
}

type editSession struct {
	id            string
	session       *reconcile.Session
	source        *model.ProductData
	sourceLang    string
	sourceContent model.ProductContent
	targets       map[string]*reconcile.EditableTargetData
	errors        map[string]string
	lastUsed      time.Time
}

// NewEditService creates an EditService. provider may be nil; sessions then
// initialize copy-only shops and report translation errors per shop.
func NewEditService(queries *store.Queries, products *ProductService, provider translate.Provider, log *slog.Logger) *EditService {
	return &EditService{
		queries:  queries,
		products: products,
		provider: provider,
		log:      log,
		sessions: make(map[string]*editSession),
	}
}

// VariantView is the wire form of one variant under edit. Key is the
// identity actions address the variant by.
type VariantView struct {
	Key       string            `json:"key"`
	State     string            `json:"state"`
	SKU       string            `json:"sku"`
	IsDefault bool              `json:"is_default"`
	SortOrder int               `json:"sort_order"`
	PriceExcl float64           `json:"price_excl"`
	Image     *model.ImageInfo  `json:"image,omitempty"`
	Titles    map[string]string `json:"titles,omitempty"`
}

// TargetView is the wire form of one shop's edit buffer.
type TargetView struct {
	ShopTLD      string                          `json:"shop_tld"`
	ProductID    int64                           `json:"product_id,omitempty"`
	Mode         string                          `json:"mode"` // create | update
	Dirty        bool                            `json:"dirty"`
	Changes      []string                        `json:"changes,omitempty"`
	Visibility   string                          `json:"visibility"`
	Content      map[string]model.ProductContent `json:"content"`
	Meta         model.TranslationMeta           `json:"meta"`
	Variants     []VariantView                   `json:"variants"`
	Images       []model.ImageInfo               `json:"images"`
	ProductImage *model.ImageInfo                `json:"product_image,omitempty"`
}

// EditSessionView is the wire form of a whole session: one target per shop
// plus per-shop initialization errors.
type EditSessionView struct {
	ID      string                `json:"id"`
	Targets map[string]TargetView `json:"targets"`
	Errors  map[string]string     `json:"errors,omitempty"`
}

// EditPayload is the built payload for one target shop, ready to submit to
// the product create/update endpoints.
type EditPayload struct {
	Mode    string                   `json:"mode"` // create | update
	Dirty   bool                     `json:"dirty"`
	Changes []string                 `json:"changes"`
	Payload reconcile.ProductPayload `json:"payload"`
}

// EditAction is one replayed edit step. Shop selects the target buffer;
// Type selects the transition; the remaining fields carry its arguments.
type EditAction struct {
	Shop  string             `json:"shop"`
	Type  string             `json:"type"`
	Lang  string             `json:"lang,omitempty"`
	Field model.ContentField `json:"field,omitempty"`
	Value string             `json:"value,omitempty"`
	Key   string             `json:"key,omitempty"`
	SKU   *string            `json:"sku,omitempty"`
	Price *float64           `json:"price,omitempty"`
	Index *int               `json:"index,omitempty"`
	Src   string             `json:"src,omitempty"`
	Image *model.ImageInfo   `json:"image,omitempty"`
}

// Open resolves a product by SKU and/or source product id and builds edit
// buffers for every target shop: edit mode when the shop already carries
// the SKU, create mode otherwise. Create-mode shops share one batched,
// memoized translation call; a translation failure is scoped to the shops
// that needed it.
func (s *EditService) Open(ctx context.Context, sku string, productID int64) (*EditSessionView, error) {
	doc, err := s.products.Details(ctx, sku, productID)
	if err != nil {
		return nil, err
	}
	if len(doc.Source) > 1 {
		return nil, fmt.Errorf("%w: sku matches %d source products, pass product_id", ErrValidation, len(doc.Source))
	}
	source := doc.Source[0]

	shops, err := s.queries.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing shops: %w", err)
	}

	var sourceShop *model.Shop
	for i := range shops {
		if shops[i].TLD == s.products.sourceTLD {
			sourceShop = &shops[i]
		}
	}
	if sourceShop == nil {
		return nil, fmt.Errorf("source shop %q is not configured", s.products.sourceTLD)
	}
	sourceLang, ok := sourceShop.DefaultLanguage()
	if !ok {
		return nil, fmt.Errorf("source shop %s has no default language", sourceShop.TLD)
	}

	es := &editSession{
		id:            uuid.NewString(),
		session:       reconcile.NewSession(s.provider),
		source:        &source,
		sourceLang:    sourceLang.Code,
		sourceContent: source.Content(sourceLang.Code),
		targets:       make(map[string]*reconcile.EditableTargetData),
		errors:        make(map[string]string),
		lastUsed:      time.Now(),
	}

	var createShops []model.Shop
	for _, shop := range shops {
		if shop.TLD == sourceShop.TLD {
			continue
		}
		candidates := doc.Targets[shop.TLD]
		switch len(candidates) {
		case 0:
			createShops = append(createShops, shop)
		case 1:
			es.targets[shop.TLD] = reconcile.NewEditableFromProduct(&candidates[0], shop)
		default:
			es.errors[shop.TLD] = fmt.Sprintf("%d products share this SKU, resolve the duplicate first", len(candidates))
		}
	}

	if len(createShops) > 0 {
		created, errs := reconcile.LoadSnapshots(ctx, es.session, es.source, es.sourceLang, createShops)
		for tld, d := range created {
			es.targets[tld] = d
		}
		for tld, err := range errs {
			s.log.Warn("edit session snapshot failed", "shop", tld, "error", err)
			es.errors[tld] = err.Error()
		}
	}

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[es.id] = es
	s.mu.Unlock()

	return s.view(es), nil
}

// Get returns the current state of a session.
func (s *EditService) Get(sessionID string) (*EditSessionView, error) {
	es, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(es), nil
}

// Act replays edit actions onto the session's buffers in order and returns
// the resulting state. The first failing action aborts; earlier actions in
// the batch stay applied, matching how the dashboard replays step by step.
func (s *EditService) Act(ctx context.Context, sessionID string, actions []EditAction) (*EditSessionView, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: at least one action is required", ErrValidation)
	}
	es, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	for i, a := range actions {
		d, ok := es.targets[a.Shop]
		if !ok {
			return nil, fmt.Errorf("%w: action %d targets unknown shop %q", ErrValidation, i, a.Shop)
		}
		if err := s.apply(ctx, es, d, a); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, a.Type, err)
		}
	}
	return s.view(es), nil
}

// Payload builds the submit-ready payload for one target shop.
func (s *EditService) Payload(sessionID, shopTLD string) (*EditPayload, error) {
	es, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	d, ok := es.targets[shopTLD]
	if !ok {
		return nil, fmt.Errorf("%w: shop %q has no edit buffer in this session", ErrValidation, shopTLD)
	}

	out := &EditPayload{
		Dirty:   d.Dirty,
		Changes: reconcile.DescribeChanges(d),
	}
	if d.ProductID == 0 {
		out.Mode = "create"
		out.Payload = reconcile.BuildCreatePayload(d)
	} else {
		out.Mode = "update"
		out.Payload = reconcile.BuildUpdatePayload(d)
	}
	return out, nil
}

// Close tears a session down, invalidating any in-flight translations.
func (s *EditService) Close(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: edit session %s", ErrNotFound, sessionID)
	}
	es.session.Clear()
	delete(s.sessions, sessionID)
	return nil
}

// apply executes one action against one edit buffer.
func (s *EditService) apply(ctx context.Context, es *editSession, d *reconcile.EditableTargetData, a EditAction) error {
	switch a.Type {
	case "update_field":
		d.UpdateField(a.Lang, a.Field, a.Value)
	case "reset_field":
		d.ResetField(a.Lang, a.Field)
	case "reset_language":
		d.ResetLanguage(a.Lang)
	case "reset_shop":
		d.ResetShop()
	case "retranslate_field":
		return reconcile.RetranslateField(ctx, es.session, d, es.sourceContent, es.sourceLang, a.Lang, a.Field)
	case "retranslate_language":
		return reconcile.RetranslateLanguage(ctx, es.session, d, es.sourceContent, es.sourceLang, a.Lang)
	case "update_variant":
		d.UpdateVariant(a.Key, a.SKU, a.Price)
	case "update_variant_title":
		d.UpdateVariantTitle(a.Key, a.Lang, a.Value)
	case "add_variant":
		d.AddVariant()
	case "add_variants_from_source":
		d.AddVariantsFromSource(es.source.Variants, es.sourceLang)
	case "remove_variant":
		d.RemoveVariant(a.Key, d.ProductID == 0)
	case "restore_variant":
		d.RestoreVariant(a.Key)
	case "move_variant":
		if a.Index == nil {
			return fmt.Errorf("%w: move_variant requires index", ErrValidation)
		}
		d.MoveVariant(a.Key, *a.Index)
	case "set_default_variant":
		d.SetDefaultVariant(a.Key)
	case "restore_default_variant":
		d.RestoreDefaultVariant()
	case "reset_variant":
		d.ResetVariant(a.Key)
	case "reset_all_variants":
		d.ResetAllVariants()
	case "select_variant_image":
		d.SelectVariantImage(a.Key, a.Image)
	case "select_product_image":
		d.SelectProductImage(a.Src)
	case "reset_product_image":
		d.ResetProductImage()
	case "remove_image":
		if a.Image == nil {
			return fmt.Errorf("%w: remove_image requires image", ErrValidation)
		}
		d.RemoveImage(*a.Image)
	case "restore_image":
		if a.Image == nil {
			return fmt.Errorf("%w: restore_image requires image", ErrValidation)
		}
		d.RestoreImage(*a.Image)
	case "move_image":
		if a.Index == nil {
			return fmt.Errorf("%w: move_image requires index", ErrValidation)
		}
		d.MoveImage(a.Src, *a.Index)
	case "reset_image_order":
		d.ResetImageOrder()
	case "update_visibility":
		d.UpdateVisibility(a.Value)
	case "reset_visibility":
		d.ResetVisibility()
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrValidation, a.Type)
	}
	return nil
}

// lookup fetches a live session and touches its TTL.
func (s *EditService) lookup(sessionID string) (*editSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	es, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: edit session %s", ErrNotFound, sessionID)
	}
	es.lastUsed = time.Now()
	return es, nil
}

// sweepLocked drops expired sessions. Caller holds s.mu.
func (s *EditService) sweepLocked() {
	cutoff := time.Now().Add(-editSessionTTL)
	for id, es := range s.sessions {
		if es.lastUsed.Before(cutoff) {
			es.session.Clear()
			delete(s.sessions, id)
		}
	}
}

func (s *EditService) view(es *editSession) *EditSessionView {
	out := &EditSessionView{
		ID:      es.id,
		Targets: make(map[string]TargetView, len(es.targets)),
	}
	if len(es.errors) > 0 {
		out.Errors = es.errors
	}
	for tld, d := range es.targets {
		out.Targets[tld] = targetView(d)
	}
	return out
}

func targetView(d *reconcile.EditableTargetData) TargetView {
	v := TargetView{
		ShopTLD:      d.ShopTLD,
		ProductID:    d.ProductID,
		Mode:         "update",
		Dirty:        d.Dirty,
		Visibility:   d.Visibility,
		Content:      d.Content,
		Meta:         d.Meta,
		Images:       d.Images,
		ProductImage: d.ProductImage,
	}
	if d.ProductID == 0 {
		v.Mode = "create"
	}
	if d.Dirty {
		v.Changes = reconcile.DescribeChanges(d)
	}
	for _, ev := range d.Variants {
		v.Variants = append(v.Variants, VariantView{
			Key:       ev.Key(),
			State:     string(ev.State),
			SKU:       ev.SKU,
			IsDefault: ev.IsDefault,
			SortOrder: ev.SortOrder,
			PriceExcl: ev.PriceExcl,
			Image:     ev.Image,
			Titles:    ev.TitleByLanguage,
		})
	}
	return v
}
