// Package session persists per-chat game state through the hybrid
// key-value store. Records are JSON blobs under a sliding TTL; a missing
// or undecodable record yields a fresh default, never an error.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
)

// DefaultTTL is the sliding session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Record is the per-chat game state.
type Record struct {
	Language      string    `json:"language"`
	Theme         string    `json:"theme,omitempty"`
	Level         int       `json:"level,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	DrawnCards    []string  `json:"drawn_cards,omitempty"`
	NSFWConfirmed bool      `json:"nsfw_confirmed,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewRecord returns the default state handed to a chat with no stored
// session: English, nothing selected, nothing drawn.
func NewRecord() *Record {
	return &Record{
		Language:  "en",
		UpdatedAt: time.Now(),
	}
}

// HasDrawn reports whether the card was already dealt in this session.
func (r *Record) HasDrawn(cardID string) bool {
	for _, id := range r.DrawnCards {
		if id == cardID {
			return true
		}
	}
	return false
}

// MarkDrawn records a dealt card. Duplicates are ignored.
func (r *Record) MarkDrawn(cardID string) {
	if !r.HasDrawn(cardID) {
		r.DrawnCards = append(r.DrawnCards, cardID)
	}
}

// ResetGame clears the game selection but keeps the chat's language.
func (r *Record) ResetGame() {
	r.Theme = ""
	r.Level = 0
	r.ContentType = ""
	r.DrawnCards = nil
	r.NSFWConfirmed = false
}

// Store is the key-value contract the repository needs. Satisfied by
// storage.HybridStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Repository loads and saves session records.
type Repository struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRepository creates a repository with the given sliding TTL.
func NewRepository(store Store, ttl time.Duration, logger zerolog.Logger) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "session_repository").Logger(),
	}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// Load returns the chat's session, or a fresh default when the key is
// absent or the stored payload does not decode. It never fails.
func (r *Repository) Load(ctx context.Context, chatID int64) *Record {
	started := time.Now()
	defer func() { observability.RecordSessionLoad(time.Since(started)) }()

	data, ok := r.store.Get(ctx, sessionKey(chatID))
	if !ok {
		return NewRecord()
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Warn().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Undecodable session payload, starting fresh")
		return NewRecord()
	}
	if rec.Language == "" {
		rec.Language = "en"
	}
	return &rec
}

// Save persists the record and refreshes the sliding TTL. Encoding a
// Record cannot fail, and storage failures are absorbed below, so Save
// has nothing to report.
func (r *Repository) Save(ctx context.Context, chatID int64, rec *Record) {
	started := time.Now()
	defer func() { observability.RecordSessionSave(time.Since(started)) }()

	rec.UpdatedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to encode session")
		return
	}

	r.store.Set(ctx, sessionKey(chatID), data, r.ttl)
}

// Clear removes the chat's session from the active storage path.
func (r *Repository) Clear(ctx context.Context, chatID int64) {
	r.store.Delete(ctx, sessionKey(chatID))
	observability.RecordSessionReset()
}
