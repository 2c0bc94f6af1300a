// Package game holds the theme/level/question catalog and deals cards.
// Content lives in a YAML file that can be swapped at runtime; the
// catalog watches it and reloads without a restart.
package game

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Content type names.
const (
	ContentQuestions = "questions"
	ContentTasks     = "tasks"
)

// Card is a single question or task, with per-language text.
type Card struct {
	ID   string            `yaml:"id"`
	Text map[string]string `yaml:"text"`
}

// Localized returns the card text for lang, falling back to English.
func (c *Card) Localized(lang string) string {
	if text, ok := c.Text[lang]; ok && text != "" {
		return text
	}
	return c.Text["en"]
}

// Level groups cards by difficulty within a leveled theme.
type Level struct {
	Level     int    `yaml:"level"`
	Questions []Card `yaml:"questions,omitempty"`
	Tasks     []Card `yaml:"tasks,omitempty"`
}

// Theme is a named card collection, either leveled or flat.
type Theme struct {
	Name   string  `yaml:"name"`
	NSFW   bool    `yaml:"nsfw,omitempty"`
	Levels []Level `yaml:"levels,omitempty"`
	Cards  []Card  `yaml:"cards,omitempty"` // flat themes have no levels
}

// Leveled reports whether the theme organizes cards by level.
func (t *Theme) Leveled() bool {
	return len(t.Levels) > 0
}

type catalogFile struct {
	Themes []Theme `yaml:"themes"`
}

// Catalog is the loaded game content. Reads take a snapshot under a
// read lock so a concurrent reload never tears a deal in half.
type Catalog struct {
	path   string
	logger zerolog.Logger

	mu     sync.RWMutex
	themes []Theme
}

// LoadCatalog reads and validates the content file at path.
func LoadCatalog(path string, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		path:   path,
		logger: logger.With().Str("component", "game_catalog").Logger(),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the content file. On failure the previous content
// stays in place, so a half-written file during a deploy is harmless.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read game content %s: %w", c.path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse game content %s: %w", c.path, err)
	}
	if len(file.Themes) == 0 {
		return fmt.Errorf("game content %s has no themes", c.path)
	}
	for i := range file.Themes {
		if err := normalizeTheme(&file.Themes[i]); err != nil {
			return fmt.Errorf("game content %s: %w", c.path, err)
		}
	}

	c.mu.Lock()
	c.themes = file.Themes
	c.mu.Unlock()

	c.logger.Info().Int("themes", len(file.Themes)).Msg("Game content loaded")
	return nil
}

// normalizeTheme validates a theme and assigns stable IDs to cards that
// do not carry one.
func normalizeTheme(t *Theme) error {
	if t.Name == "" {
		return fmt.Errorf("theme without a name")
	}
	if t.Leveled() && len(t.Cards) > 0 {
		return fmt.Errorf("theme %q mixes levels and flat cards", t.Name)
	}
	if !t.Leveled() && len(t.Cards) == 0 {
		return fmt.Errorf("theme %q has no cards", t.Name)
	}

	for i := range t.Cards {
		if t.Cards[i].ID == "" {
			t.Cards[i].ID = fmt.Sprintf("%s-%d", t.Name, i)
		}
	}
	for li := range t.Levels {
		lvl := &t.Levels[li]
		for i := range lvl.Questions {
			if lvl.Questions[i].ID == "" {
				lvl.Questions[i].ID = fmt.Sprintf("%s-%d-q%d", t.Name, lvl.Level, i)
			}
		}
		for i := range lvl.Tasks {
			if lvl.Tasks[i].ID == "" {
				lvl.Tasks[i].ID = fmt.Sprintf("%s-%d-t%d", t.Name, lvl.Level, i)
			}
		}
	}
	return nil
}

// Themes returns the theme names in file order.
func (c *Catalog) Themes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.themes))
	for _, t := range c.themes {
		names = append(names, t.Name)
	}
	return names
}

// Theme returns the named theme.
func (c *Catalog) Theme(name string) (*Theme, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.themes {
		if c.themes[i].Name == name {
			theme := c.themes[i]
			return &theme, true
		}
	}
	return nil, false
}

// Draw deals a random card from the selection that the exclude predicate
// has not seen yet. Level and content type are ignored for flat themes.
// It returns false when the theme is unknown or every card was drawn.
func (c *Catalog) Draw(themeName string, level int, contentType string, exclude func(cardID string) bool) (*Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pool []Card
	for i := range c.themes {
		t := &c.themes[i]
		if t.Name != themeName {
			continue
		}
		if !t.Leveled() {
			pool = t.Cards
			break
		}
		for li := range t.Levels {
			if t.Levels[li].Level != level {
				continue
			}
			if contentType == ContentTasks {
				pool = t.Levels[li].Tasks
			} else {
				pool = t.Levels[li].Questions
			}
			break
		}
		break
	}

	remaining := make([]Card, 0, len(pool))
	for _, card := range pool {
		if exclude == nil || !exclude(card.ID) {
			remaining = append(remaining, card)
		}
	}
	if len(remaining) == 0 {
		return nil, false
	}

	card := remaining[rand.Intn(len(remaining))]
	return &card, true
}
