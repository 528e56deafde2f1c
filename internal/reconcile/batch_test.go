package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/translate"
)

func TestPrepareTranslationBatch_CopyVsTranslate(t *testing.T) {
	content := model.ProductContent{
		Title:       "Widget",
		Description: "<p>Mooi ding</p>",
	}

	b := PrepareTranslationBatch(content, "nl", []string{"nl", "de"})

	assert.Equal(t, []string{"nl"}, b.CopyLanguages)
	require.Len(t, b.Items, 2, "one item per non-empty field for the translate language")

	for _, item := range b.Items {
		assert.Equal(t, "nl", item.SourceLang)
		assert.Equal(t, "de", item.TargetLang)
	}
	assert.Equal(t, model.FieldTitle, b.Items[0].Field)
	assert.Equal(t, "Widget", b.Items[0].Text)
	assert.Equal(t, model.FieldDescription, b.Items[1].Field)
}

func TestPrepareTranslationBatch_EmptyFieldsSkipped(t *testing.T) {
	b := PrepareTranslationBatch(model.ProductContent{}, "nl", []string{"de", "fr"})
	assert.Empty(t, b.Items)
	assert.Empty(t, b.CopyLanguages)
}

func TestDeduplicateItems_RoundTrip(t *testing.T) {
	items := []translate.Item{
		{SourceLang: "nl", TargetLang: "de", Field: model.FieldTitle, Text: "Widget"},
		{SourceLang: "nl", TargetLang: "fr", Field: model.FieldTitle, Text: "Widget"},
		{SourceLang: "nl", TargetLang: "de", Field: model.FieldTitle, Text: "Widget"}, // duplicate of [0]
		{SourceLang: "nl", TargetLang: "de", Field: model.FieldDescription, Text: "Widget"},
	}

	unique, indexMap := DeduplicateItems(items)
	require.Len(t, unique, 3)
	assert.Equal(t, []int{0, 1, 0, 2}, indexMap)

	// Simulate provider output for the unique items only.
	results := make([]string, len(unique))
	for i, item := range unique {
		results[i] = "[" + item.TargetLang + ":" + string(item.Field) + "] " + item.Text
	}

	expanded := ReconstructResults(results, indexMap)
	require.Len(t, expanded, len(items))
	for i, item := range items {
		assert.Equal(t, "["+item.TargetLang+":"+string(item.Field)+"] "+item.Text, expanded[i],
			"result %d must correspond to items[%d]", i, i)
	}
}

func TestDeduplicateItems_Empty(t *testing.T) {
	unique, indexMap := DeduplicateItems(nil)
	assert.Empty(t, unique)
	assert.Empty(t, indexMap)
	assert.Empty(t, ReconstructResults(nil, indexMap))
}
