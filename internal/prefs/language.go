// Package prefs stores device-wide preferences.
package prefs

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"campusroll/internal/model"
	"campusroll/internal/store"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// DefaultLanguage is returned when nothing has been chosen yet.
const DefaultLanguage = model.LanguageEnglish

type Preferences struct {
	kv store.Store
}

func New(kv store.Store) *Preferences {
	return &Preferences{kv: kv}
}

func (p *Preferences) Language(ctx context.Context) (model.Language, error) {
	snap, err := store.Load[model.Language](ctx, p.kv, store.KeyLanguage)
	if err != nil {
		return "", errors.Wrap(err, "load language")
	}
	if !snap.Exists() || !snap.Value.Valid() {
		return DefaultLanguage, nil
	}
	return snap.Value, nil
}

func (p *Preferences) SetLanguage(ctx context.Context, code string) (model.Language, error) {
	lang := model.Language(strings.ToLower(strings.TrimSpace(code)))
	if !lang.Valid() {
		return "", errors.Wrapf(ErrUnsupportedLanguage, "%q", code)
	}
	if err := store.Save(ctx, p.kv, store.KeyLanguage, lang); err != nil {
		return "", errors.Wrap(err, "save language")
	}
	return lang, nil
}
