// Package i18n resolves user-facing message keys to localized text.
// Translations live in per-language YAML files; a missing key falls back
// to English, and a key missing there too renders as itself so a content
// gap is visible instead of silent.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the fallback for unknown or incomplete languages.
const DefaultLanguage = "en"

// SupportedLanguages in the order the language keyboard shows them.
var SupportedLanguages = []string{"en", "ru", "cs"}

// Supported reports whether the language code has a translation file.
func Supported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Translator holds the loaded message tables.
type Translator struct {
	tables map[string]map[string]string
	logger zerolog.Logger
}

// Load reads <lang>.yaml for every supported language from dir. The
// English table is mandatory; other languages may be partial.
func Load(dir string, logger zerolog.Logger) (*Translator, error) {
	t := &Translator{
		tables: make(map[string]map[string]string),
		logger: logger.With().Str("component", "i18n").Logger(),
	}

	for _, lang := range SupportedLanguages {
		path := filepath.Join(dir, lang+".yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			if lang == DefaultLanguage {
				return nil, fmt.Errorf("failed to read translations %s: %w", path, err)
			}
			t.logger.Warn().Str("language", lang).Msg("Missing translation file, falling back to English")
			continue
		}

		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse translations %s: %w", path, err)
		}
		t.tables[lang] = table
	}

	return t, nil
}

// T resolves key in lang, formatting any args in fmt.Sprintf style.
func (t *Translator) T(lang, key string, args ...interface{}) string {
	text, ok := t.tables[lang][key]
	if !ok {
		text, ok = t.tables[DefaultLanguage][key]
	}
	if !ok {
		t.logger.Debug().Str("key", key).Str("language", lang).Msg("Missing translation key")
		return key
	}

	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}
