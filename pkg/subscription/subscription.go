// Package subscription tracks per-user premium access. State lives in the
// hybrid key-value store so it survives restarts when the backend is up,
// fronted by a short-lived in-process cache to keep the hot HasPremium
// check off the wire.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
)

// Tier names.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

const (
	// recordTTL keeps subscription records alive in storage well past any
	// paid period so lapsed users downgrade instead of vanishing.
	recordTTL = 90 * 24 * time.Hour

	cacheTTL     = time.Minute
	cacheCleanup = 5 * time.Minute
)

// UserSubscription is the stored per-user entitlement.
type UserSubscription struct {
	UserID        int64     `json:"user_id"`
	Tier          string    `json:"tier"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	LastPaymentID string    `json:"last_payment_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the subscription grants premium access right now.
func (s *UserSubscription) Active() bool {
	return s.Tier == TierPremium && time.Now().Before(s.ExpiresAt)
}

// Store is the key-value contract the service needs. Satisfied by
// storage.HybridStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Service manages subscription state.
type Service struct {
	store  Store
	cache  *cache.Cache
	logger zerolog.Logger

	mu   sync.Mutex
	seen map[int64]struct{}
}

// NewService creates a subscription service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache.New(cacheTTL, cacheCleanup),
		logger: logger.With().Str("component", "subscription_service").Logger(),
		seen:   make(map[int64]struct{}),
	}
}

func (s *Service) markSeen(userID int64) {
	s.mu.Lock()
	s.seen[userID] = struct{}{}
	s.mu.Unlock()
}

// SeenUsers returns the users this process has touched since start. The
// daily expiry scan walks them; users who never show up again are
// reaped by the storage TTL instead.
func (s *Service) SeenUsers() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	return ids
}

func subscriptionKey(userID int64) string {
	return fmt.Sprintf("subscription:%d", userID)
}

// Get returns the user's subscription, defaulting to the free tier when
// nothing is stored or the payload does not decode.
func (s *Service) Get(ctx context.Context, userID int64) *UserSubscription {
	s.markSeen(userID)
	key := subscriptionKey(userID)

	if cached, ok := s.cache.Get(key); ok {
		sub := cached.(UserSubscription)
		return &sub
	}

	sub := s.load(ctx, userID)
	s.cache.Set(key, *sub, cache.DefaultExpiration)
	return sub
}

func (s *Service) load(ctx context.Context, userID int64) *UserSubscription {
	data, ok := s.store.Get(ctx, subscriptionKey(userID))
	if !ok {
		return &UserSubscription{UserID: userID, Tier: TierFree}
	}

	var sub UserSubscription
	if err := json.Unmarshal(data, &sub); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("user_id", userID).
			Msg("Undecodable subscription payload, treating as free tier")
		return &UserSubscription{UserID: userID, Tier: TierFree}
	}
	return &sub
}

// Activate grants the tier for the given period, extending an already
// active subscription rather than restarting it.
func (s *Service) Activate(ctx context.Context, userID int64, tier string, period time.Duration, paymentID string) *UserSubscription {
	s.markSeen(userID)
	sub := s.load(ctx, userID)

	base := time.Now()
	if sub.Active() && sub.ExpiresAt.After(base) {
		base = sub.ExpiresAt
	}

	sub.Tier = tier
	sub.ExpiresAt = base.Add(period)
	sub.LastPaymentID = paymentID
	s.save(ctx, sub)

	s.logger.Info().
		Int64("user_id", userID).
		Str("tier", tier).
		Time("expires_at", sub.ExpiresAt).
		Msg("Subscription activated")
	observability.RecordSubscriptionAudit("activated", fmt.Sprintf("%d", userID), "success", map[string]interface{}{
		"tier":       tier,
		"expires_at": sub.ExpiresAt,
	})

	return sub
}

// Cancel downgrades the user to the free tier immediately.
func (s *Service) Cancel(ctx context.Context, userID int64) {
	s.markSeen(userID)
	sub := s.load(ctx, userID)
	sub.Tier = TierFree
	sub.ExpiresAt = time.Time{}
	s.save(ctx, sub)

	s.logger.Info().Int64("user_id", userID).Msg("Subscription cancelled")
	observability.RecordSubscriptionAudit("cancelled", fmt.Sprintf("%d", userID), "success", nil)
}

// HasPremium reports whether the user currently has premium access.
func (s *Service) HasPremium(ctx context.Context, userID int64) bool {
	return s.Get(ctx, userID).Active()
}

func (s *Service) save(ctx context.Context, sub *UserSubscription) {
	sub.UpdatedAt = time.Now()
	data, err := json.Marshal(sub)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", sub.UserID).Msg("Failed to encode subscription")
		return
	}
	s.store.Set(ctx, subscriptionKey(sub.UserID), data, recordTTL)
	s.cache.Set(subscriptionKey(sub.UserID), *sub, cache.DefaultExpiration)
}

// ExpireLapsed downgrades the given users when their paid period ended.
// The daemon runs it daily over recently seen users; storage-level TTLs
// eventually reap records for users who never return. The scan doubles
// as the census behind the active-subscriptions gauge.
func (s *Service) ExpireLapsed(ctx context.Context, userIDs []int64) int {
	expired := 0
	active := 0
	for _, id := range userIDs {
		sub := s.load(ctx, id)
		if sub.Tier != TierPremium {
			continue
		}
		if sub.Active() {
			active++
			continue
		}
		sub.Tier = TierFree
		s.save(ctx, sub)
		expired++
		s.logger.Info().Int64("user_id", id).Msg("Subscription lapsed")
	}
	observability.SetActiveSubscriptions(TierPremium, active)
	return expired
}
