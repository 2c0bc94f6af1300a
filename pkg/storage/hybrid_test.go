package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a map-backed Backend with TTL support and failure injection.
type fakeBackend struct {
	mu      sync.Mutex
	entries map[string]fakeBackendEntry
	failAll bool
	pingErr error
}

type fakeBackendEntry struct {
	payload   []byte
	expiresAt time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[string]fakeBackendEntry)}
}

func (b *fakeBackend) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pingErr
}

func (b *fakeBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return nil, false, fmt.Errorf("backend down")
	}
	entry, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(b.entries, key)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (b *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return fmt.Errorf("backend down")
	}
	entry := fakeBackendEntry{payload: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	b.entries[key] = entry
	return nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return fmt.Errorf("backend down")
	}
	delete(b.entries, key)
	return nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) setFailing(failing bool) {
	b.mu.Lock()
	b.failAll = failing
	b.mu.Unlock()
}

func setupHybrid(t *testing.T, state State) (*HybridStore, *fakeBackend, *SignalHolder) {
	t.Helper()
	backend := newFakeBackend()
	holder := NewSignalHolder()
	holder.publish(Signal{State: state, Since: time.Now()})
	store := NewHybridStore(backend, holder, HybridConfig{Logger: zerolog.Nop()})
	return store, backend, holder
}

func TestHybridStore_BackendRoundTrip(t *testing.T) {
	store, _, _ := setupHybrid(t, StateAvailable)
	ctx := context.Background()

	store.Set(ctx, "session:42", []byte(`{"language":"en"}`), time.Minute)

	value, ok := store.Get(ctx, "session:42")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"language":"en"}`), value)
}

func TestHybridStore_FallbackRoundTrip(t *testing.T) {
	store, backend, _ := setupHybrid(t, StateUnavailable)
	ctx := context.Background()

	store.Set(ctx, "session:42", []byte("payload"), time.Minute)

	value, ok := store.Get(ctx, "session:42")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)

	// The backend was never touched.
	_, ok, err := backend.Get(ctx, "session:42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHybridStore_UnknownRoutesToFallback(t *testing.T) {
	store, backend, _ := setupHybrid(t, StateUnknown)
	ctx := context.Background()

	store.Set(ctx, "session:42", []byte("payload"), time.Minute)

	_, ok, err := backend.Get(ctx, "session:42")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok2 := store.Get(ctx, "session:42")
	assert.True(t, ok2)
}

func TestHybridStore_NoMigrationAfterRecovery(t *testing.T) {
	store, _, holder := setupHybrid(t, StateUnavailable)
	ctx := context.Background()

	// Written during the outage window: lives only in the fallback map.
	store.Set(ctx, "session:42", []byte("outage-write"), time.Minute)

	holder.publish(Signal{State: StateAvailable, Since: time.Now()})

	// The backend never saw the value; the session resets.
	_, ok := store.Get(ctx, "session:42")
	assert.False(t, ok)
}

func TestHybridStore_BackendErrorDegradesToAbsent(t *testing.T) {
	store, backend, _ := setupHybrid(t, StateAvailable)
	ctx := context.Background()

	backend.setFailing(true)

	value, ok := store.Get(ctx, "session:42")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestHybridStore_BackendWriteFailureIsNotRerouted(t *testing.T) {
	store, backend, holder := setupHybrid(t, StateAvailable)
	ctx := context.Background()

	backend.setFailing(true)
	store.Set(ctx, "session:42", []byte("dropped"), time.Minute)

	// Even after flipping to the fallback path the value is gone: failed
	// backend writes are dropped, not mirrored.
	holder.publish(Signal{State: StateUnavailable, Since: time.Now()})
	_, ok := store.Get(ctx, "session:42")
	assert.False(t, ok)
}

func TestHybridStore_DeleteLeavesInactivePathAlone(t *testing.T) {
	store, _, holder := setupHybrid(t, StateUnavailable)
	ctx := context.Background()

	store.Set(ctx, "session:42", []byte("fallback-copy"), time.Minute)

	// Delete while the backend is active only touches the backend path.
	holder.publish(Signal{State: StateAvailable, Since: time.Now()})
	store.Delete(ctx, "session:42")

	holder.publish(Signal{State: StateUnavailable, Since: time.Now()})
	value, ok := store.Get(ctx, "session:42")
	require.True(t, ok)
	assert.Equal(t, []byte("fallback-copy"), value)
}

func TestHybridStore_TTLExpiryOnBothPaths(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"backend path", StateAvailable},
		{"fallback path", StateUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, _ := setupHybrid(t, tt.state)
			ctx := context.Background()

			store.Set(ctx, "session:42", []byte("short-lived"), 30*time.Millisecond)
			time.Sleep(60 * time.Millisecond)

			_, ok := store.Get(ctx, "session:42")
			assert.False(t, ok)
		})
	}
}

func TestHybridStore_OperationsNeverChangeSignal(t *testing.T) {
	store, backend, holder := setupHybrid(t, StateAvailable)
	ctx := context.Background()

	backend.setFailing(true)
	before := holder.Current()

	store.Set(ctx, "k", []byte("v"), time.Minute)
	store.Get(ctx, "k")
	store.Delete(ctx, "k")

	assert.Equal(t, before, holder.Current())
}

func TestHybridStore_Sweep(t *testing.T) {
	store, _, _ := setupHybrid(t, StateUnavailable)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), 10*time.Millisecond)
	store.Set(ctx, "b", []byte("2"), time.Minute)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
}

func TestHybridStore_ConcurrentAccess(t *testing.T) {
	store, _, holder := setupHybrid(t, StateAvailable)
	ctx := context.Background()

	const goroutines = 8
	const opsPerGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("session:%d", id)
			for j := 0; j < opsPerGoroutine; j++ {
				store.Set(ctx, key, []byte("v"), time.Minute)
				store.Get(ctx, key)
				// Signal flips race with operations by design.
				if j%10 == 0 {
					state := StateAvailable
					if id%2 == 0 {
						state = StateUnavailable
					}
					holder.publish(Signal{State: state, Since: time.Now()})
				}
			}
		}(i)
	}
	wg.Wait()
}
