// Package i18n renders the candidate-facing notices and warnings in the
// candidate's language.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Message identifiers shared with the locale files.
const (
	MsgPasteBlocked        = "NoticePasteBlocked"
	MsgSubmissionFailed    = "NoticeSubmissionFailed"
	MsgIdentityMissing     = "NoticeIdentityMissing"
	MsgWarningTabSwitch    = "WarningTabSwitch"
	MsgWarningReturn       = "WarningReturn"
	MsgUnloadPrompt        = "UnloadPrompt"
	MsgSubmissionSucceeded = "SubmissionSucceeded"
)

// Catalog owns the translation bundle. Safe for concurrent use.
type Catalog struct {
	bundle      *i18n.Bundle
	defaultLang string
	log         zerolog.Logger
}

// NewCatalog loads every embedded locale file with defaultLang as the fallback.
func NewCatalog(defaultLang string, log zerolog.Logger) (*Catalog, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	return &Catalog{
		bundle:      bundle,
		defaultLang: defaultLang,
		log:         log.With().Str("component", "i18n").Logger(),
	}, nil
}

// T translates msgID for the given language preference (a tag or an
// Accept-Language header value). Missing ids come back verbatim.
func (c *Catalog) T(lang, msgID string) string {
	return c.localize(lang, &i18n.LocalizeConfig{MessageID: msgID})
}

// Tp translates a pluralized message, exposing the count as {{.Count}}.
func (c *Catalog) Tp(lang, msgID string, count int) string {
	return c.localize(lang, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func (c *Catalog) localize(lang string, cfg *i18n.LocalizeConfig) string {
	loc := i18n.NewLocalizer(c.bundle, lang, c.defaultLang)
	s, err := loc.Localize(cfg)
	if err != nil {
		c.log.Warn().Err(err).Str("id", cfg.MessageID).Str("lang", lang).Msg("Missing translation")
		return cfg.MessageID
	}
	return s
}
