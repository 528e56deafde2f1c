package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/model"
)

func TestBuildUpdatePayload_ExcludesTombstones(t *testing.T) {
	d := loadEditBuffer(t)

	d.RemoveVariant(d.Variants[1].Key(), false)
	d.RemoveImage(d.Images[2])

	p := BuildUpdatePayload(d)

	require.Len(t, p.Variants, 2)
	assert.Equal(t, "W-1", p.Variants[0].SKU)
	assert.Equal(t, "W-3", p.Variants[1].SKU)

	require.Len(t, p.Images, 2)
	assert.Equal(t, "https://cdn/a.jpg", p.Images[0].Src)
	assert.Equal(t, "https://cdn/b.jpg", p.Images[1].Src)
}

func TestBuildUpdatePayload_SortedBySortOrder(t *testing.T) {
	d := loadEditBuffer(t)
	d.MoveVariant(d.Variants[2].Key(), 0)
	d.MoveImage("https://cdn/c.jpg", 0)

	p := BuildUpdatePayload(d)

	assert.Equal(t, "W-3", p.Variants[0].SKU)
	assert.Equal(t, "https://cdn/c.jpg", p.Images[0].Src)
}

// The payload produced after an edit and its exact inverse must equal the
// payload of the untouched snapshot.
func TestPayload_InverseActionsRoundTrip(t *testing.T) {
	pristine := BuildUpdatePayload(loadEditBuffer(t))

	d := loadEditBuffer(t)
	key := d.Variants[0].Key()

	d.UpdateField("de", model.FieldTitle, "Gadget")
	d.ResetField("de", model.FieldTitle)

	sku := "X"
	d.UpdateVariant(key, &sku, nil)
	d.ResetVariant(key)

	d.RemoveVariant(d.Variants[1].Key(), false)
	d.RestoreVariant(d.Variants[1].Key())

	d.MoveVariant(key, 2)
	d.MoveVariant(key, 0)

	d.SelectProductImage("https://cdn/b.jpg")
	d.SelectProductImage("https://cdn/a.jpg")

	d.RemoveImage(d.Images[1])
	d.RestoreImage(d.Images[1])

	d.UpdateVisibility(model.VisibilityHidden)
	d.ResetVisibility()

	require.False(t, d.Dirty)
	assert.Equal(t, pristine, BuildUpdatePayload(d))
}

func TestBuildCreatePayload_NoPersistedIDs(t *testing.T) {
	d, _ := loadDualLang(t)

	p := BuildCreatePayload(d)
	require.Len(t, p.Variants, 2)
	for _, v := range p.Variants {
		assert.Zero(t, v.VariantID)
		assert.NotEmpty(t, v.TempID)
	}
	assert.Equal(t, "Widget", p.ContentByLanguage["nl"].Title)
	assert.NotEmpty(t, p.ContentByLanguage["de"].Title)
}

func TestDiffVariants(t *testing.T) {
	current := []model.Variant{
		{ID: 21, SKU: "W-1", IsDefault: true, SortOrder: 1, PriceExcl: 10},
		{ID: 22, SKU: "W-2", SortOrder: 2, PriceExcl: 12},
		{ID: 23, SKU: "W-3", SortOrder: 3, PriceExcl: 14},
	}
	payload := []VariantPayload{
		{VariantID: 21, SKU: "W-1", IsDefault: true, SortOrder: 1, PriceExcl: 10}, // unchanged
		{VariantID: 22, SKU: "W-2", SortOrder: 2, PriceExcl: 13.5},                // price change
		{TempID: "tmp-1", SKU: "W-4", SortOrder: 4, PriceExcl: 20},                // new
		// 23 missing: delete
	}

	ops := DiffVariants(payload, current)

	require.Len(t, ops.Create, 1)
	assert.Equal(t, "W-4", ops.Create[0].SKU)

	require.Len(t, ops.Update, 1)
	assert.Equal(t, int64(22), ops.Update[0].VariantID)

	assert.Equal(t, []int64{23}, ops.Delete)
}

func TestDiffImages_AgainstFreshRemoteList(t *testing.T) {
	// The remote list differs from what the edit buffer loaded: image d
	// was added server-side, image b was deleted server-side.
	remote := []model.ImageInfo{
		{ID: 11, Src: "https://cdn/a.jpg", SortOrder: 1},
		{ID: 14, Src: "https://cdn/d.jpg", SortOrder: 2},
	}
	desired := []model.ImageInfo{
		{Src: "https://cdn/d.jpg", SortOrder: 1},
		{Src: "https://cdn/a.jpg", SortOrder: 2},
		{Src: "https://cdn/new.jpg", SortOrder: 3},
	}

	ops := DiffImages(desired, remote)

	require.Len(t, ops.Create, 1)
	assert.Equal(t, "https://cdn/new.jpg", ops.Create[0].Src)
	assert.Empty(t, ops.Delete)
	assert.Equal(t, 1, ops.Reorder[14])
	assert.Equal(t, 2, ops.Reorder[11])
}

func TestDiffImages_DetectsRemovals(t *testing.T) {
	remote := []model.ImageInfo{
		{ID: 11, Src: "https://cdn/a.jpg", SortOrder: 1},
		{ID: 12, Src: "https://cdn/b.jpg", SortOrder: 2},
	}
	desired := []model.ImageInfo{
		{Src: "https://cdn/a.jpg", SortOrder: 1},
	}

	ops := DiffImages(desired, remote)
	assert.Empty(t, ops.Create)
	assert.Equal(t, []int64{12}, ops.Delete)
	assert.Empty(t, ops.Reorder)
}

func TestDescribeChanges(t *testing.T) {
	d := loadEditBuffer(t)

	d.UpdateVisibility(model.VisibilityHidden)
	d.UpdateField("de", model.FieldTitle, "Gadget")
	d.UpdateField("nl", model.FieldTitle, "Widget Neu")
	d.RemoveVariant(d.Variants[2].Key(), false)
	d.AddVariant()
	d.SelectProductImage("https://cdn/b.jpg")
	d.RemoveImage(d.Images[2])

	changes := DescribeChanges(d)

	assert.Contains(t, changes, "Visibility changed to hidden")
	assert.Contains(t, changes, "Content updated: title")
	assert.Contains(t, changes, "1 variant(s) added")
	assert.Contains(t, changes, "1 variant(s) removed")
	assert.Contains(t, changes, "Product image changed")
	assert.Contains(t, changes, "1 image(s) removed")
	assert.Contains(t, changes, "Image order changed")
	assert.NotContains(t, changes, "No specific changes tracked")
}

func TestDescribeChanges_FallbackOnCleanState(t *testing.T) {
	d := loadEditBuffer(t)
	assert.Equal(t, []string{"No specific changes tracked"}, DescribeChanges(d))
}
