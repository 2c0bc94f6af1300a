package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranslations(t *testing.T, dir, lang, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lang+".yaml"), []byte(content), 0644))
}

func loadTestTranslator(t *testing.T) *Translator {
	t.Helper()
	dir := t.TempDir()
	writeTranslations(t, dir, "en", "welcome: \"Welcome!\"\ncards_left: \"%d cards left\"\n")
	writeTranslations(t, dir, "ru", "welcome: \"Добро пожаловать!\"\n")

	tr, err := Load(dir, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestTranslator_ResolvesLanguage(t *testing.T) {
	tr := loadTestTranslator(t)

	assert.Equal(t, "Welcome!", tr.T("en", "welcome"))
	assert.Equal(t, "Добро пожаловать!", tr.T("ru", "welcome"))
}

func TestTranslator_FallsBackToEnglish(t *testing.T) {
	tr := loadTestTranslator(t)

	// ru has no cards_left, cs has no file at all.
	assert.Equal(t, "5 cards left", tr.T("ru", "cards_left", 5))
	assert.Equal(t, "Welcome!", tr.T("cs", "welcome"))
}

func TestTranslator_MissingKeyRendersAsKey(t *testing.T) {
	tr := loadTestTranslator(t)

	assert.Equal(t, "no_such_key", tr.T("en", "no_such_key"))
}

func TestTranslator_Formatting(t *testing.T) {
	tr := loadTestTranslator(t)

	assert.Equal(t, "3 cards left", tr.T("en", "cards_left", 3))
}

func TestLoad_RequiresEnglish(t *testing.T) {
	dir := t.TempDir()
	writeTranslations(t, dir, "ru", "welcome: hi\n")

	_, err := Load(dir, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoad_RejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	writeTranslations(t, dir, "en", "{{{{")

	_, err := Load(dir, zerolog.Nop())
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("en"))
	assert.True(t, Supported("ru"))
	assert.True(t, Supported("cs"))
	assert.False(t, Supported("de"))
	assert.False(t, Supported(""))
}
