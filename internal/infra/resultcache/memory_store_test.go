package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "Senior dev", time.Minute))
	text, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Senior dev", text)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ttl", "short lived", time.Minute))
	require.NoError(t, store.Set(ctx, "forever", "kept", 0))

	now = now.Add(2 * time.Minute)

	_, ok, err := store.Get(ctx, "ttl")
	require.NoError(t, err)
	require.False(t, ok)
	require.NotContains(t, store.entries, "ttl")

	text, ok, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", text)
}

func TestValkeyStoreKeys(t *testing.T) {
	require.Equal(t, "bio:result:abc", NewValkeyStore(nil, "").resultKey("abc"))
	require.Equal(t, "staging:result:abc", NewValkeyStore(nil, "staging").resultKey("abc"))
}
