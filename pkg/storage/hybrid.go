package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
)

// DefaultOpTimeout bounds a single backend call issued by the hybrid store.
const DefaultOpTimeout = 2 * time.Second

// HybridConfig configures the hybrid store.
type HybridConfig struct {
	OpTimeout time.Duration
	Logger    zerolog.Logger
}

// HybridStore is the single entry point for key-value operations. Each
// operation reads the availability signal once and dispatches to the
// backend or the in-process fallback map; callers never learn which path
// served them.
//
// Writes are not mirrored: a key written while the backend is unavailable
// lives only in the fallback map and is not migrated when the backend
// recovers. Sessions touched during an outage window reset once the signal
// flips back. Operations never change the signal.
type HybridStore struct {
	backend   Backend
	fallback  *FallbackStore
	signal    *SignalHolder
	opTimeout time.Duration
	logger    zerolog.Logger
}

// NewHybridStore creates a hybrid store routing between backend and a
// fresh fallback map according to signal.
func NewHybridStore(backend Backend, signal *SignalHolder, cfg HybridConfig) *HybridStore {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}

	return &HybridStore{
		backend:   backend,
		fallback:  NewFallbackStore(),
		signal:    signal,
		opTimeout: cfg.OpTimeout,
		logger:    cfg.Logger.With().Str("component", "hybrid_store").Logger(),
	}
}

// Get returns the payload for key from whichever path is active. A backend
// failure despite an Available signal degrades to absent; it is logged and
// counted but never surfaces as an error.
func (h *HybridStore) Get(ctx context.Context, key string) ([]byte, bool) {
	switch h.signal.Current().State {
	case StateAvailable:
		opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
		defer cancel()

		value, ok, err := h.backend.Get(opCtx, key)
		if err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("Backend read failed, treating as absent")
			observability.RecordStorageOp("backend", "get", false)
			return nil, false
		}
		observability.RecordStorageOp("backend", "get", true)
		return value, ok

	case StateUnknown, StateUnavailable:
		value, ok := h.fallback.Get(key)
		observability.RecordStorageOp("fallback", "get", true)
		return value, ok
	}

	return nil, false
}

// Set stores the payload with the given TTL on the active path. Backend
// failures are a no-op for the caller: the value is not re-routed to the
// fallback map, keeping exactly one path authoritative per key.
func (h *HybridStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	switch h.signal.Current().State {
	case StateAvailable:
		opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
		defer cancel()

		if err := h.backend.Set(opCtx, key, value, ttl); err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("Backend write failed, value dropped")
			observability.RecordStorageOp("backend", "set", false)
			return
		}
		observability.RecordStorageOp("backend", "set", true)

	case StateUnknown, StateUnavailable:
		h.fallback.Set(key, value, ttl)
		observability.RecordStorageOp("fallback", "set", true)
	}
}

// Delete removes the key from the active path. A copy on the inactive path
// is left alone until it expires naturally.
func (h *HybridStore) Delete(ctx context.Context, key string) {
	switch h.signal.Current().State {
	case StateAvailable:
		opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
		defer cancel()

		if err := h.backend.Delete(opCtx, key); err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("Backend delete failed")
			observability.RecordStorageOp("backend", "delete", false)
			return
		}
		observability.RecordStorageOp("backend", "delete", true)

	case StateUnknown, StateUnavailable:
		h.fallback.Delete(key)
		observability.RecordStorageOp("fallback", "delete", true)
	}
}

// Sweep prunes expired fallback entries. The daemon schedules it
// periodically to bound memory growth from keys that are never read again.
func (h *HybridStore) Sweep() int {
	removed := h.fallback.Sweep()
	observability.SetFallbackEntries(h.fallback.Len())
	if removed > 0 {
		h.logger.Debug().Int("removed", removed).Msg("Swept expired fallback entries")
	}
	return removed
}

// Signal returns the current availability snapshot for status reporting.
func (h *HybridStore) Signal() Signal {
	return h.signal.Current()
}
