package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok := s.entries[key]
	return data, ok
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.entries[key] = value
}

func (s *fakeStore) Delete(ctx context.Context, key string) {
	delete(s.entries, key)
}

func TestService_GetDefaultsToFree(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())

	sub := svc.Get(context.Background(), 42)

	assert.Equal(t, TierFree, sub.Tier)
	assert.False(t, sub.Active())
	assert.False(t, svc.HasPremium(context.Background(), 42))
}

func TestService_ActivateGrantsPremium(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	sub := svc.Activate(ctx, 42, TierPremium, 30*24*time.Hour, "pay-1")

	assert.Equal(t, TierPremium, sub.Tier)
	assert.True(t, sub.Active())
	assert.True(t, svc.HasPremium(ctx, 42))
}

func TestService_ActivateExtendsActivePeriod(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	first := svc.Activate(ctx, 42, TierPremium, 30*24*time.Hour, "pay-1")
	second := svc.Activate(ctx, 42, TierPremium, 30*24*time.Hour, "pay-2")

	// The second period stacks on top of the remaining first one.
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, "pay-2", second.LastPaymentID)
}

func TestService_Cancel(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	svc.Activate(ctx, 42, TierPremium, 30*24*time.Hour, "pay-1")
	require.True(t, svc.HasPremium(ctx, 42))

	svc.Cancel(ctx, 42)

	assert.False(t, svc.HasPremium(ctx, 42))
	assert.Equal(t, TierFree, svc.Get(ctx, 42).Tier)
}

func TestService_ExpiredPremiumIsNotActive(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	svc.Activate(ctx, 42, TierPremium, -time.Hour, "pay-1")

	assert.False(t, svc.HasPremium(ctx, 42))
}

func TestService_UndecodablePayloadTreatedAsFree(t *testing.T) {
	store := newFakeStore()
	store.entries["subscription:42"] = []byte("{broken")
	svc := NewService(store, zerolog.Nop())

	sub := svc.Get(context.Background(), 42)

	assert.Equal(t, TierFree, sub.Tier)
}

func TestService_ExpireLapsed(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	svc.Activate(ctx, 1, TierPremium, -time.Hour, "pay-1") // lapsed
	svc.Activate(ctx, 2, TierPremium, time.Hour, "pay-2")  // still active
	// User 3 was never premium.

	expired := svc.ExpireLapsed(ctx, []int64{1, 2, 3})

	assert.Equal(t, 1, expired)
	assert.Equal(t, TierFree, svc.Get(ctx, 1).Tier)
	assert.Equal(t, TierPremium, svc.Get(ctx, 2).Tier)
}

func TestService_GetUsesCache(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zerolog.Nop())
	ctx := context.Background()

	svc.Activate(ctx, 42, TierPremium, time.Hour, "pay-1")

	// Mutating storage behind the cache does not affect reads within the
	// cache window.
	store.entries["subscription:42"] = []byte(`{"user_id":42,"tier":"free"}`)

	assert.Equal(t, TierPremium, svc.Get(ctx, 42).Tier)
}

func TestService_SeenUsers(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	svc.Get(ctx, 1)
	svc.Activate(ctx, 2, TierPremium, time.Hour, "pay-1")
	svc.Cancel(ctx, 3)
	svc.Get(ctx, 1)

	assert.ElementsMatch(t, []int64{1, 2, 3}, svc.SeenUsers())
}
