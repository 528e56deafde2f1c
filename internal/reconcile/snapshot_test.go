package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/shopsync-go/internal/model"
	"github.com/olegiv/shopsync-go/internal/translate"
)

// loadDualLangSession is loadDualLang but also returns the session, for
// tests exercising the re-translation paths.
func loadDualLangSession(t *testing.T) (*EditableTargetData, *Session, *stubProvider) {
	t.Helper()
	provider := &stubProvider{}
	session := NewSession(provider)

	targets, errs := LoadSnapshots(context.Background(), session, sampleSource(), "nl", []model.Shop{dualLangShop()})
	require.Empty(t, errs)
	require.Contains(t, targets, "de")
	return targets["de"], session, provider
}

func TestRetranslateField_BypassesMemoAndRedefinesBaseline(t *testing.T) {
	d, session, provider := loadDualLangSession(t)
	ctx := context.Background()
	sourceContent := sampleSource().Content("nl")

	require.Equal(t, "v1:de:Widget", d.Content["de"].Title)
	require.Equal(t, 1, provider.calls)

	err := RetranslateField(ctx, session, d, sourceContent, "nl", "de", model.FieldTitle)
	require.NoError(t, err)

	// The memo already held a value for this exact item; re-translating
	// must still hit the provider.
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, "v2:de:Widget", d.Content["de"].Title)

	// The fresh value becomes the new baseline: the buffer stays clean and
	// a manual edit resets back to it, not to the first translation.
	assert.False(t, d.Dirty)
	assert.Equal(t, model.OriginTranslated, d.Meta.Origin("de", model.FieldTitle))

	d.UpdateField("de", model.FieldTitle, "Gadget")
	require.True(t, d.Dirty)
	d.ResetField("de", model.FieldTitle)
	assert.Equal(t, "v2:de:Widget", d.Content["de"].Title)
	assert.False(t, d.Dirty)

	// The memo entry was overwritten, so a memoized translate of the same
	// item now serves the fresh value without another provider call.
	results, err := session.Translate(ctx, []translate.Item{titleItem("de", "Widget")})
	require.NoError(t, err)
	assert.Equal(t, "v2:de:Widget", results[0])
	assert.Equal(t, 2, provider.calls)
}

func TestRetranslateField_EmptySourceFieldSkipsProvider(t *testing.T) {
	d, session, provider := loadDualLangSession(t)
	sourceContent := sampleSource().Content("nl") // fulltitle is empty

	err := RetranslateField(context.Background(), session, d, sourceContent, "nl", "de", model.FieldFulltitle)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "empty source text must not reach the provider")
	assert.Empty(t, d.Content["de"].Fulltitle)
	assert.Equal(t, model.OriginTranslated, d.Meta.Origin("de", model.FieldFulltitle))
	assert.False(t, d.Dirty)
}

func TestRetranslateLanguage_ReplacesBaselinesForNonEmptyFields(t *testing.T) {
	d, session, provider := loadDualLangSession(t)
	sourceContent := sampleSource().Content("nl")

	d.UpdateField("de", model.FieldTitle, "Gadget")
	require.True(t, d.Dirty)

	err := RetranslateLanguage(context.Background(), session, d, sourceContent, "nl", "de")
	require.NoError(t, err)

	// One batch covers both non-empty fields; empty fields are skipped.
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, "v2:de:Widget", d.Content["de"].Title)
	assert.Equal(t, "v2:de:<p>Mooi ding</p>", d.Content["de"].Description)
	assert.Empty(t, d.Content["de"].Fulltitle)

	// Fresh values replace both the working copy and the baseline, so the
	// manual edit above is gone and the buffer is clean again.
	assert.False(t, d.Dirty)
	assert.Equal(t, model.OriginTranslated, d.Meta.Origin("de", model.FieldTitle))
	assert.Equal(t, model.OriginTranslated, d.Meta.Origin("de", model.FieldDescription))
}

func TestRetranslateLanguage_ProviderFailureLeavesBufferUntouched(t *testing.T) {
	d, session, provider := loadDualLangSession(t)
	provider.fail = true

	err := RetranslateLanguage(context.Background(), session, d, sampleSource().Content("nl"), "nl", "de")
	require.Error(t, err)

	assert.Equal(t, "v1:de:Widget", d.Content["de"].Title)
	assert.Equal(t, "v1:de:<p>Mooi ding</p>", d.Content["de"].Description)
	assert.False(t, d.Dirty)
}
