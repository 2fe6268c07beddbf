package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusroll/internal/model"
	"campusroll/internal/store"
)

func TestLanguage(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	p := New(kv)

	lang, err := p.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.LanguageEnglish, lang)

	lang, err = p.SetLanguage(ctx, " AR ")
	require.NoError(t, err)
	assert.Equal(t, model.LanguageArabic, lang)

	raw, _, err := kv.Get(ctx, store.KeyLanguage)
	require.NoError(t, err)
	assert.Equal(t, `"ar"`, string(raw))

	_, err = p.SetLanguage(ctx, "de")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	lang, err = p.Language(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.LanguageArabic, lang, "a rejected change leaves the old value")
}
